package console

import "github.com/tinytelemetry/debugconsole/internal/model"

// Snapshot is a copy of the store state safe to read from any goroutine.
type Snapshot struct {
	Mode         Mode                  `json:"-"`
	ModeName     string                `json:"mode"`
	Rows         []RowView             `json:"rows"`
	Severities   []model.SeverityCount `json:"severities"`
	LiveCount    int                   `json:"live_count"`
	HistoryCount int                   `json:"history_count"`
	Total        int                   `json:"total"`
	MaxEntries   int                   `json:"maximum_entries"`
	Dirty        bool                  `json:"-"`

	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
	Rejected uint64 `json:"rejected"`
}

// Snapshot captures the current state. Callers outside the writer goroutine
// should use Hub.Snapshot instead.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Mode:         s.mode,
		ModeName:     s.mode.String(),
		Rows:         s.Rows(),
		Severities:   s.reg.Counts(),
		LiveCount:    s.live.Len(),
		HistoryCount: len(s.history),
		Total:        s.reg.Total(),
		MaxEntries:   s.max,
		Dirty:        s.reg.Dirty(),
	}
}

// VisibleRows filters rows down to those with a bound render proxy.
func (s Snapshot) VisibleRows() []RowView {
	out := make([]RowView, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.Displayed {
			out = append(out, r)
		}
	}
	return out
}
