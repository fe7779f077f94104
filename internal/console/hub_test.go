package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

func startHub(t *testing.T, h *Hub) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	return func() {
		cancelCtx()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

func TestHubAppliesSubmittedEventsBeforeCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{QueueSize: 16})
	var accepted []model.HistoryRow
	if err := h.OnAccepted(func(row model.HistoryRow) { accepted = append(accepted, row) }); err != nil {
		t.Fatalf("OnAccepted: %v", err)
	}
	stop := startHub(t, h)
	defer stop()

	for range 3 {
		if !h.Submit(model.LogEvent{Message: "NullRef", StackTrace: "stackA", Kind: model.KindError, Source: "test"}) {
			t.Fatal("Submit rejected event")
		}
	}
	h.Submit(model.LogEvent{Message: "ignored", Kind: model.KindUnknown})

	snap, err := h.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Rows) != 1 || snap.Rows[0].Count != 3 {
		t.Fatalf("rows = %+v, want one row with count 3", snap.Rows)
	}
	if snap.Total != 3 || snap.Accepted != 3 || snap.Rejected != 1 {
		t.Errorf("total/accepted/rejected = %d/%d/%d, want 3/3/1", snap.Total, snap.Accepted, snap.Rejected)
	}
	if len(accepted) != 3 {
		t.Fatalf("listener saw %d rows, want 3", len(accepted))
	}
	if accepted[0].Severity != "Error" || accepted[0].Source != "test" || accepted[0].Timestamp.IsZero() {
		t.Errorf("unexpected archived row %+v", accepted[0])
	}
	if accepted[0].Fingerprint != Fingerprint("NullRef", "stackA") {
		t.Error("archived row carries the wrong fingerprint")
	}
}

func TestHubArchivedRowUsesOccurrenceSeverity(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{QueueSize: 16})
	var accepted []model.HistoryRow
	if err := h.OnAccepted(func(row model.HistoryRow) { accepted = append(accepted, row) }); err != nil {
		t.Fatalf("OnAccepted: %v", err)
	}
	stop := startHub(t, h)
	defer stop()

	h.Submit(model.LogEvent{Message: "same", StackTrace: "st", Kind: model.KindLog})
	h.Submit(model.LogEvent{Message: "same", StackTrace: "st", Kind: model.KindError})

	snap, err := h.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Rows) != 1 || snap.Rows[0].Count != 2 {
		t.Fatalf("rows = %+v, want one collapsed row", snap.Rows)
	}
	if len(accepted) != 2 {
		t.Fatalf("listener saw %d rows, want 2", len(accepted))
	}
	if accepted[0].Severity != "Info" || accepted[0].Kind != model.KindLog {
		t.Errorf("first row = %s/%v, want Info/log", accepted[0].Severity, accepted[0].Kind)
	}
	if accepted[1].Severity != "Error" || accepted[1].Kind != model.KindError {
		t.Errorf("second row = %s/%v, want Error/error", accepted[1].Severity, accepted[1].Kind)
	}
}

func TestHubDoRunsOnWriter(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{})
	stop := startHub(t, h)
	defer stop()

	h.Submit(model.LogEvent{Message: "a", Kind: model.KindLog})
	h.Submit(model.LogEvent{Message: "a", Kind: model.KindLog})

	var mode Mode
	if err := h.Do(context.Background(), func(s *Store) { mode = s.ToggleCollapseMode() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if mode != Flattened {
		t.Fatalf("mode = %v, want flattened", mode)
	}
	snap, err := h.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ModeName != "flattened" || snap.LiveCount != 2 {
		t.Errorf("mode/live = %s/%d, want flattened/2", snap.ModeName, snap.LiveCount)
	}
}

func TestHubSnapshotClearsDirty(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{})
	stop := startHub(t, h)
	defer stop()

	ctx := context.Background()
	if err := h.Do(ctx, func(s *Store) { s.SetSeverityVisible("info", false) }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	first, _ := h.Snapshot(ctx)
	second, _ := h.Snapshot(ctx)
	if !first.Dirty || second.Dirty {
		t.Errorf("dirty flags = %v/%v, want true/false", first.Dirty, second.Dirty)
	}
}

func TestHubRequestDetails(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{})
	if err := h.OnDetails(nil); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("OnDetails(nil) = %v, want ErrNilCallback", err)
	}
	if err := h.OnAccepted(nil); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("OnAccepted(nil) = %v, want ErrNilCallback", err)
	}

	var gotLabel, gotStack string
	if err := h.OnDetails(func(label, callstack string) { gotLabel, gotStack = label, callstack }); err != nil {
		t.Fatalf("OnDetails: %v", err)
	}
	stop := startHub(t, h)
	defer stop()

	h.Submit(model.LogEvent{Message: "boom", StackTrace: "at main()", Kind: model.KindException})
	snap, _ := h.Snapshot(context.Background())
	if len(snap.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(snap.Rows))
	}

	if err := h.RequestDetails(context.Background(), snap.Rows[0].ID); err != nil {
		t.Fatalf("RequestDetails: %v", err)
	}
	if gotLabel != "boom" || gotStack != "at main()" {
		t.Errorf("details = (%q, %q), want (boom, at main())", gotLabel, gotStack)
	}
	if err := h.RequestDetails(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("RequestDetails(unknown) = %v, want ErrNotFound", err)
	}
}

func TestHubAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{QueueSize: 1})
	stop := startHub(t, h)
	stop()

	if h.Submit(model.LogEvent{Message: "late", Kind: model.KindLog}) {
		t.Error("Submit accepted an event after stop")
	}
	if err := h.Do(context.Background(), func(*Store) {}); !errors.Is(err, ErrHubStopped) {
		t.Errorf("Do after stop = %v, want ErrHubStopped", err)
	}
	if _, dropped, _ := h.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestHubSubmitDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(newTestStore(10, true), HubConfig{QueueSize: 2})
	accepted := 0
	for range 5 {
		if h.Submit(model.LogEvent{Message: "x", Kind: model.KindLog}) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2", accepted)
	}
	if _, dropped, _ := h.Stats(); dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
}
