package duckdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

func TestSnapshotTo_CreatesBackupFile(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "console.duckdb")
	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	err = store.InsertHistoryBatch([]model.HistoryRow{
		row("snapshot test", "Info", model.KindLog, 1),
		row("snapshot boom", "Error", model.KindException, 2),
	})
	if err != nil {
		t.Fatalf("InsertHistoryBatch: %v", err)
	}

	snapshotPath := filepath.Join(t.TempDir(), "backups", "snapshot.duckdb")
	if err := store.SnapshotTo(snapshotPath); err != nil {
		t.Fatalf("SnapshotTo: %v", err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("snapshot file is empty")
	}
	if _, err := os.Stat(snapshotPath + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary snapshot left behind: %v", err)
	}

	// The live archive keeps accepting writes after the export.
	if err := store.InsertHistoryBatch([]model.HistoryRow{row("after", "Info", model.KindLog, 3)}); err != nil {
		t.Fatalf("InsertHistoryBatch after snapshot: %v", err)
	}

	snap, err := sql.Open("duckdb", snapshotPath)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	t.Cleanup(func() { _ = snap.Close() })

	var n int
	if err := snap.QueryRow("SELECT count(*) FROM log_history").Scan(&n); err != nil {
		t.Fatalf("count snapshot rows: %v", err)
	}
	if n != 2 {
		t.Fatalf("snapshot rows = %d, want 2", n)
	}
	var label string
	if err := snap.QueryRow("SELECT label FROM log_history WHERE severity = 'Error'").Scan(&label); err != nil {
		t.Fatalf("read snapshot row: %v", err)
	}
	if label != "snapshot boom" {
		t.Fatalf("label = %q, want snapshot boom", label)
	}
}

func TestSnapshotTo_OverwritesStaleTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "console.duckdb"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	dst := filepath.Join(dir, "snap.duckdb")
	if err := os.WriteFile(dst+".tmp", []byte("partial"), 0o644); err != nil {
		t.Fatalf("write stale temp: %v", err)
	}
	if err := store.SnapshotTo(dst); err != nil {
		t.Fatalf("SnapshotTo: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
}

func TestSnapshotTo_InMemoryStore(t *testing.T) {
	t.Parallel()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	err = store.SnapshotTo(filepath.Join(t.TempDir(), "snapshot.duckdb"))
	if err == nil {
		t.Fatal("expected error for in-memory store")
	}
	if err != ErrInMemoryStore {
		t.Fatalf("err = %v, want %v", err, ErrInMemoryStore)
	}
}
