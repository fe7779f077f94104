// Package console implements the deduplicating log entry store behind the
// debug console: a bounded live list with a fingerprint index, an unbounded
// history of value copies, and the collapse/flatten replay between layouts.
//
// Store is single-threaded. Hub wraps it in a single-writer goroutine for use
// from concurrent ingest paths.
package console

import (
	"container/list"

	"github.com/tinytelemetry/debugconsole/internal/model"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

// Config holds the store settings read at startup.
type Config struct {
	MaximumEntries int
	Collapse       bool
	ProxyPoolSize  int
}

// Store owns the live entries, their history, and the render proxies.
type Store struct {
	reg     *severity.Registry
	max     int
	mode    Mode
	live    *list.List
	index   map[uint64]*list.Element
	byID    map[uint64]*list.Element
	history []HistoryRecord
	proxies *ProxyPool
	nextID  uint64
}

// NewStore creates an empty store bound to reg.
func NewStore(reg *severity.Registry, cfg Config) *Store {
	maxEntries := cfg.MaximumEntries
	if maxEntries <= 0 {
		maxEntries = model.DefaultMaximumEntries
	}
	mode := Flattened
	if cfg.Collapse {
		mode = Collapsed
	}
	return &Store{
		reg:     reg,
		max:     maxEntries,
		mode:    mode,
		live:    list.New(),
		index:   make(map[uint64]*list.Element),
		byID:    make(map[uint64]*list.Element),
		proxies: NewProxyPool(cfg.ProxyPoolSize),
	}
}

// Registry returns the severity registry the store counts into.
func (s *Store) Registry() *severity.Registry { return s.reg }

// Mode returns the current layout.
func (s *Store) Mode() Mode { return s.mode }

// MaximumEntries returns the live list capacity.
func (s *Store) MaximumEntries() int { return s.max }

// Len returns the number of live entries.
func (s *Store) Len() int { return s.live.Len() }

// HistoryLen returns the number of recorded occurrences.
func (s *Store) HistoryLen() int { return len(s.history) }

// Proxies exposes the render proxy pool.
func (s *Store) Proxies() *ProxyPool { return s.proxies }

// Enqueue records one log call. It returns false, and changes nothing, when
// kind does not belong to any severity bucket.
func (s *Store) Enqueue(label, callstack string, kind model.LogKind) (*Entry, bool) {
	class, ok := s.reg.Classify(kind)
	if !ok {
		return nil, false
	}
	fp := Fingerprint(label, callstack)

	var e *Entry
	if s.mode == Collapsed {
		if el, found := s.index[fp]; found {
			e = el.Value.(*Entry)
			s.unlink(e)
			e.Count++
		}
	}
	if e == nil {
		if s.live.Len() >= s.max {
			s.evictOldest()
		}
		e = s.newEntry(label, callstack, class, fp)
	}

	s.link(e)
	s.history = append(s.history, HistoryRecord{
		Label:       e.Label,
		Callstack:   e.Callstack,
		Kind:        kind,
		Severity:    class,
		Count:       e.Count,
		Fingerprint: fp,
		owner:       e.id,
	})
	s.reg.Increment(class, 1)
	s.attach(e)
	return e, true
}

// Clear drops every entry and history record and zeroes all severity counts.
func (s *Store) Clear() {
	s.releaseAll()
	s.live.Init()
	s.index = make(map[uint64]*list.Element)
	s.byID = make(map[uint64]*list.Element)
	s.history = nil
	s.reg.ResetAll()
}

// RemoveEntry deletes e from the live list and its records from history.
// The owning severity count drops by e.Count.
func (s *Store) RemoveEntry(e *Entry) bool {
	if e == nil || e.elem == nil {
		return false
	}
	if el, ok := s.byID[e.id]; !ok || el != e.elem {
		return false
	}
	s.reg.Increment(e.Severity, -e.Count)
	s.unlink(e)
	s.forget(e)

	kept := s.history[:0]
	for _, rec := range s.history {
		if rec.owner != e.id {
			kept = append(kept, rec)
		}
	}
	clear(s.history[len(kept):])
	s.history = kept
	return true
}

// Entry looks up a live entry by ID.
func (s *Store) Entry(id uint64) (*Entry, bool) {
	el, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*Entry), true
}

// EntryByFingerprint returns the most recent live entry with fingerprint fp.
func (s *Store) EntryByFingerprint(fp uint64) (*Entry, bool) {
	el, ok := s.index[fp]
	if !ok {
		return nil, false
	}
	return el.Value.(*Entry), true
}

// LiveEntries returns the live entries, oldest first.
func (s *Store) LiveEntries() []*Entry {
	out := make([]*Entry, 0, s.live.Len())
	for el := s.live.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry))
	}
	return out
}

// Rows projects the live entries for rendering, oldest first.
func (s *Store) Rows() []RowView {
	out := make([]RowView, 0, s.live.Len())
	for el := s.live.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Entry).View())
	}
	return out
}

// History returns a copy of the history records in chronological order.
func (s *Store) History() []HistoryRecord {
	out := make([]HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

// SetSeverityVisible toggles a bucket by name and, when the flag changed,
// re-runs proxy attachment over the live list. The second result is false
// when no bucket has that name.
func (s *Store) SetSeverityVisible(name string, visible bool) (changed, ok bool) {
	class, ok := s.reg.Lookup(name)
	if !ok {
		return false, false
	}
	if !s.reg.SetVisible(class, visible) {
		return false, true
	}
	for el := s.live.Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry)
		if e.Severity == class {
			s.attach(e)
		}
	}
	return true, true
}

func (s *Store) newEntry(label, callstack string, class *severity.Class, fp uint64) *Entry {
	s.nextID++
	return &Entry{
		Label:       label,
		Callstack:   callstack,
		Severity:    class,
		Count:       1,
		id:          s.nextID,
		fingerprint: fp,
	}
}

// link appends e at the most recent position and points the indexes at it.
func (s *Store) link(e *Entry) {
	e.elem = s.live.PushBack(e)
	s.index[e.fingerprint] = e.elem
	s.byID[e.id] = e.elem
}

// unlink removes e from the live list and releases its proxy. Index entries
// are left for the caller to repoint or forget.
func (s *Store) unlink(e *Entry) {
	s.live.Remove(e.elem)
	s.detach(e)
}

// forget drops e from the indexes. e must already be unlinked. In Flattened
// mode several rows can share a fingerprint, so the index falls back to the
// newest remaining one.
func (s *Store) forget(e *Entry) {
	if el, ok := s.index[e.fingerprint]; ok && el == e.elem {
		delete(s.index, e.fingerprint)
		for prev := s.live.Back(); prev != nil; prev = prev.Prev() {
			if prev.Value.(*Entry).fingerprint == e.fingerprint {
				s.index[e.fingerprint] = prev
				break
			}
		}
	}
	delete(s.byID, e.id)
	e.elem = nil
}

func (s *Store) evictOldest() {
	front := s.live.Front()
	if front == nil {
		return
	}
	e := front.Value.(*Entry)
	s.reg.Increment(e.Severity, -e.Count)
	s.unlink(e)
	s.forget(e)
}

// attach binds or releases the proxy of e to match its severity visibility.
func (s *Store) attach(e *Entry) {
	if !e.Severity.Visible() {
		s.detach(e)
		return
	}
	if e.proxy == nil {
		e.proxy = s.proxies.Acquire(e)
	}
	e.Displayed = true
}

func (s *Store) detach(e *Entry) {
	if e.proxy != nil {
		s.proxies.Release(e.proxy)
		e.proxy = nil
	}
	e.Displayed = false
}

func (s *Store) releaseAll() {
	for el := s.live.Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry)
		s.detach(e)
		e.elem = nil
	}
}
