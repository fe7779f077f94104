package console

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tinytelemetry/debugconsole/internal/model"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

func TestModeRoundTripPreservesSeverityCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(10, true)
	s.Enqueue("A", "sa", model.KindError)
	s.Enqueue("A", "sa", model.KindError)
	s.Enqueue("B", "sb", model.KindWarning)
	before := counts(s)

	s.FlattenEntries()
	if s.Mode() != Flattened {
		t.Fatalf("mode = %v, want flattened", s.Mode())
	}
	if diff := cmp.Diff(before, counts(s)); diff != "" {
		t.Errorf("flatten changed counts (-want +got):\n%s", diff)
	}
	// Records keep the count they were cloned with.
	if diff := cmp.Diff([]int{1, 2, 1}, rowCounts(s)); diff != "" {
		t.Errorf("flattened row counts mismatch (-want +got):\n%s", diff)
	}

	s.MergeEntries()
	if s.Mode() != Collapsed {
		t.Fatalf("mode = %v, want collapsed", s.Mode())
	}
	if diff := cmp.Diff(before, counts(s)); diff != "" {
		t.Errorf("merge changed counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B"}, labels(s)); diff != "" {
		t.Errorf("merged rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 1}, rowCounts(s)); diff != "" {
		t.Errorf("merged row counts mismatch (-want +got):\n%s", diff)
	}
}

func TestToggleCollapseMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(10, false)
	s.Enqueue("x", "", model.KindLog)
	s.Enqueue("y", "", model.KindLog)
	s.Enqueue("x", "", model.KindLog)

	if s.Len() != 3 {
		t.Fatalf("flattened rows = %d, want 3", s.Len())
	}
	if got := s.ToggleCollapseMode(); got != Collapsed {
		t.Fatalf("ToggleCollapseMode = %v, want collapsed", got)
	}
	if diff := cmp.Diff([]string{"y", "x"}, labels(s)); diff != "" {
		t.Errorf("merged rows mismatch (-want +got):\n%s", diff)
	}
	if got := counts(s)[severity.NameInfo]; got != 3 {
		t.Errorf("Info count = %d, want 3", got)
	}

	if s.SetCollapse(true) {
		t.Error("SetCollapse(true) replayed while already collapsed")
	}
	if !s.SetCollapse(false) || s.Len() != 3 {
		t.Errorf("SetCollapse(false) rows = %d, want 3", s.Len())
	}
}

func TestMergeTrimsRowsBeyondCapacity(t *testing.T) {
	t.Parallel()
	s := newTestStore(2, false)
	s.Enqueue("one", "", model.KindLog)
	s.Enqueue("two", "", model.KindLog)
	s.Enqueue("three", "", model.KindLog)
	if got := counts(s)[severity.NameInfo]; got != 2 {
		t.Fatalf("Info count before merge = %d, want 2", got)
	}

	s.MergeEntries()

	if got := counts(s)[severity.NameInfo]; got != 2 {
		t.Errorf("Info count after merge = %d, want 2", got)
	}
	if diff := cmp.Diff([]string{"two", "three"}, labels(s)); diff != "" {
		t.Errorf("rows beyond capacity not trimmed (-want +got):\n%s", diff)
	}
}

func TestModeRoundTripAfterEviction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		collapse bool
		labels   []string
		want     int
	}{
		{name: "flattened distinct", collapse: false, labels: []string{"a", "b", "c"}, want: 2},
		{name: "collapsed repeat evicted", collapse: true, labels: []string{"a", "a", "b", "c"}, want: 2},
		{name: "collapsed repeat kept", collapse: true, labels: []string{"a", "b", "a", "c"}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(2, tt.collapse)
			for _, l := range tt.labels {
				s.Enqueue(l, "", model.KindLog)
			}
			before := counts(s)
			if before[severity.NameInfo] != tt.want {
				t.Fatalf("Info count = %d, want %d", before[severity.NameInfo], tt.want)
			}

			for range 2 {
				s.ToggleCollapseMode()
				if diff := cmp.Diff(before, counts(s)); diff != "" {
					t.Errorf("%v replay changed counts (-want +got):\n%s", s.Mode(), diff)
				}
				if s.Len() > 2 {
					t.Errorf("%v rows = %d, want at most 2", s.Mode(), s.Len())
				}
			}
		})
	}
}

func TestReplayAttachesOnlyVisibleSeverities(t *testing.T) {
	t.Parallel()
	reg := severity.NewRegistry(severity.Visibility{Errors: true, Warnings: true, Info: false})
	s := NewStore(reg, Config{MaximumEntries: 10, Collapse: true})
	s.Enqueue("info", "", model.KindLog)
	s.Enqueue("err", "", model.KindError)

	s.FlattenEntries()

	for _, e := range s.LiveEntries() {
		want := e.Severity.Visible()
		if e.Displayed != want || (e.Proxy() != nil) != want {
			t.Errorf("entry %q displayed=%v proxy=%v, want %v", e.Label, e.Displayed, e.Proxy() != nil, want)
		}
	}
	if s.Proxies().InUse() != 1 {
		t.Errorf("proxies in use = %d, want 1", s.Proxies().InUse())
	}
}
