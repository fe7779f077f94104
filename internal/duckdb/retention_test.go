package duckdb

import (
	"testing"
	"time"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

func TestRetentionCleaner_StopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 1})
	if cleaner == nil {
		t.Fatal("expected non-nil retention cleaner")
	}

	cleaner.Stop()
	cleaner.Stop()
}

func TestRetentionCleaner_Disabled(t *testing.T) {
	store := newTestStore(t)
	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 0})
	if cleaner != nil {
		t.Fatal("expected nil cleaner when retention is disabled")
	}
	cleaner.Stop()
}

func TestRetentionCleaner_StartupCleanup(t *testing.T) {
	store := newTestStore(t)

	old := row("stale", "Info", model.KindLog, 1)
	old.Timestamp = time.Now().Add(-72 * time.Hour)
	insertTestRows(t, store, []model.HistoryRow{old, row("fresh", "Info", model.KindLog, 2)})

	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 1})
	defer cleaner.Stop()

	count, err := store.TotalHistoryCount()
	if err != nil {
		t.Fatalf("TotalHistoryCount: %v", err)
	}
	if count != 1 {
		t.Errorf("after startup cleanup, count = %d, want 1", count)
	}
}
