// Package severity groups log kinds into the fixed Error/Warning/Info buckets
// and keeps a visibility flag and a running occurrence count per bucket.
//
// A Registry is not safe for concurrent use; all calls are expected to come
// from the console's single writer goroutine.
package severity

import (
	"strings"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// Bucket names.
const (
	NameError   = "Error"
	NameWarning = "Warning"
	NameInfo    = "Info"
)

// Class is one severity bucket.
type Class struct {
	name    string
	kinds   map[model.LogKind]struct{}
	visible bool
	count   int
}

// Name returns the bucket name.
func (c *Class) Name() string { return c.name }

// Visible reports whether entries of this bucket should be rendered.
func (c *Class) Visible() bool { return c.visible }

// Count returns the running occurrence count.
func (c *Class) Count() int { return c.count }

// Matches reports whether kind belongs to this bucket.
func (c *Class) Matches(kind model.LogKind) bool {
	_, ok := c.kinds[kind]
	return ok
}

// Visibility carries the initial per-bucket visibility flags.
type Visibility struct {
	Errors   bool
	Warnings bool
	Info     bool
}

// AllVisible is the default visibility.
var AllVisible = Visibility{Errors: true, Warnings: true, Info: true}

// Registry owns the three severity buckets.
type Registry struct {
	classes []*Class
	byKind  map[model.LogKind]*Class
	dirty   bool
}

// NewRegistry builds the Error, Warning and Info buckets.
func NewRegistry(vis Visibility) *Registry {
	r := &Registry{byKind: make(map[model.LogKind]*Class)}
	r.add(NameError, vis.Errors, model.KindAssert, model.KindError, model.KindException)
	r.add(NameWarning, vis.Warnings, model.KindWarning)
	r.add(NameInfo, vis.Info, model.KindLog)
	return r
}

func (r *Registry) add(name string, visible bool, kinds ...model.LogKind) {
	c := &Class{name: name, visible: visible, kinds: make(map[model.LogKind]struct{}, len(kinds))}
	for _, k := range kinds {
		c.kinds[k] = struct{}{}
		r.byKind[k] = c
	}
	r.classes = append(r.classes, c)
}

// Classify returns the bucket for kind, or false when no bucket accepts it.
func (r *Registry) Classify(kind model.LogKind) (*Class, bool) {
	c, ok := r.byKind[kind]
	return c, ok
}

// Lookup finds a bucket by name, case-insensitively.
func (r *Registry) Lookup(name string) (*Class, bool) {
	for _, c := range r.classes {
		if strings.EqualFold(c.name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return nil, false
}

// Classes returns the buckets in display order (Error, Warning, Info).
func (r *Registry) Classes() []*Class {
	out := make([]*Class, len(r.classes))
	copy(out, r.classes)
	return out
}

// SetVisible updates the visibility flag of c. It returns true and marks the
// registry dirty only when the value actually changed.
func (r *Registry) SetVisible(c *Class, visible bool) bool {
	if c == nil || c.visible == visible {
		return false
	}
	c.visible = visible
	r.dirty = true
	return true
}

// Increment adds delta to the running count of c. Counts never drop below zero.
func (r *Registry) Increment(c *Class, delta int) {
	if c == nil {
		return
	}
	c.count += delta
	if c.count < 0 {
		c.count = 0
	}
}

// Reset zeroes the running count of c.
func (r *Registry) Reset(c *Class) {
	if c != nil {
		c.count = 0
	}
}

// ResetAll zeroes every running count.
func (r *Registry) ResetAll() {
	for _, c := range r.classes {
		c.count = 0
	}
}

// Dirty reports whether a visibility change is waiting for a re-render pass.
func (r *Registry) Dirty() bool { return r.dirty }

// ClearDirty acknowledges the pending re-render.
func (r *Registry) ClearDirty() { r.dirty = false }

// Total returns the sum of all running counts.
func (r *Registry) Total() int {
	total := 0
	for _, c := range r.classes {
		total += c.count
	}
	return total
}

// Counts returns a snapshot of every bucket.
func (r *Registry) Counts() []model.SeverityCount {
	out := make([]model.SeverityCount, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, model.SeverityCount{Name: c.name, Count: c.count, Visible: c.visible})
	}
	return out
}
