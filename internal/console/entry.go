package console

import (
	"container/list"

	"github.com/tinytelemetry/debugconsole/internal/model"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

// Mode is the live list layout.
type Mode int

const (
	// Collapsed shows each distinct (label, callstack) once with a counter.
	Collapsed Mode = iota
	// Flattened shows one row per physical log call.
	Flattened
)

func (m Mode) String() string {
	if m == Flattened {
		return "flattened"
	}
	return "collapsed"
}

// Entry is a live row owned by the Store.
type Entry struct {
	Label     string
	Callstack string
	Severity  *severity.Class
	Count     int
	Displayed bool

	id          uint64
	fingerprint uint64
	elem        *list.Element
	proxy       *Proxy // not owned
}

// ID is unique per entry for the lifetime of the Store.
func (e *Entry) ID() uint64 { return e.id }

// Fingerprint returns the dedup key of the entry.
func (e *Entry) Fingerprint() uint64 { return e.fingerprint }

// Proxy returns the render proxy currently bound to the entry, if any.
func (e *Entry) Proxy() *Proxy { return e.proxy }

// HistoryRecord is an immutable copy of an entry taken at enqueue time.
// Count is whatever the live entry carried at that moment.
type HistoryRecord struct {
	Label       string
	Callstack   string
	Kind        model.LogKind
	Severity    *severity.Class
	Count       int
	Fingerprint uint64

	owner uint64
}

// RowView is the read-only projection of an entry handed to renderers.
type RowView struct {
	ID          uint64 `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Label       string `json:"label"`
	Callstack   string `json:"callstack,omitempty"`
	Count       int    `json:"count"`
	Severity    string `json:"severity"`
	Displayed   bool   `json:"displayed"`
}

// View projects e for renderers.
func (e *Entry) View() RowView {
	return RowView{
		ID:          e.id,
		Fingerprint: FormatFingerprint(e.fingerprint),
		Label:       e.Label,
		Callstack:   e.Callstack,
		Count:       e.Count,
		Severity:    e.Severity.Name(),
		Displayed:   e.Displayed,
	}
}
