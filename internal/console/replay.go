package console

import "container/list"

// ToggleCollapseMode flips between Collapsed and Flattened and replays history
// under the new layout. It returns the new mode.
func (s *Store) ToggleCollapseMode() Mode {
	if s.mode == Collapsed {
		s.FlattenEntries()
	} else {
		s.MergeEntries()
	}
	return s.mode
}

// SetCollapse switches to the requested layout. It reports whether a replay ran.
func (s *Store) SetCollapse(collapse bool) bool {
	if collapse == (s.mode == Collapsed) {
		return false
	}
	s.ToggleCollapseMode()
	return true
}

// MergeEntries rebuilds the live list in Collapsed mode. Every history record
// is replayed in order with move-to-end dedup. Severity counts are recomputed
// as one per record, less the rows that no longer fit, the same way Enqueue
// evicts.
func (s *Store) MergeEntries() {
	s.resetLive()
	s.mode = Collapsed
	s.reg.ResetAll()

	for i := range s.history {
		rec := &s.history[i]
		var e *Entry
		if el, ok := s.index[rec.Fingerprint]; ok {
			e = el.Value.(*Entry)
			s.live.Remove(e.elem)
			e.Count++
		} else {
			e = s.newEntry(rec.Label, rec.Callstack, rec.Severity, rec.Fingerprint)
		}
		s.link(e)
		rec.owner = e.id
		s.reg.Increment(rec.Severity, 1)
	}
	s.trimReplay(true)
	s.attachAll()
}

// FlattenEntries rebuilds the live list in Flattened mode with one row per
// history record. Rows keep the count baked into their record; severity counts
// are left as they are.
func (s *Store) FlattenEntries() {
	s.resetLive()
	s.mode = Flattened

	for i := range s.history {
		rec := &s.history[i]
		e := s.newEntry(rec.Label, rec.Callstack, rec.Severity, rec.Fingerprint)
		e.Count = rec.Count
		s.link(e)
		rec.owner = e.id
	}
	s.trimReplay(false)
	s.attachAll()
}

func (s *Store) resetLive() {
	s.releaseAll()
	s.live.Init()
	s.index = make(map[uint64]*list.Element)
	s.byID = make(map[uint64]*list.Element)
}

// trimReplay drops the oldest rows beyond capacity. When recount is set the
// counts were rebuilt during the replay and each dropped row gives its count
// back; otherwise the counts were left as they were and stay untouched.
func (s *Store) trimReplay(recount bool) {
	for s.live.Len() > s.max {
		e := s.live.Front().Value.(*Entry)
		if recount {
			s.reg.Increment(e.Severity, -e.Count)
		}
		s.live.Remove(e.elem)
		s.forget(e)
	}
}

func (s *Store) attachAll() {
	for el := s.live.Front(); el != nil; el = el.Next() {
		s.attach(el.Value.(*Entry))
	}
}
