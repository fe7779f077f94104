package duckdb

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

func TestInsertBuffer_AddAndStop(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store)

	for i := 0; i < 10; i++ {
		buf.Add(row("test message", "Info", model.KindLog, uint64(i)))
	}

	// Stop flushes everything pending.
	buf.Stop()

	count, err := store.TotalHistoryCount()
	if err != nil {
		t.Fatalf("TotalHistoryCount: %v", err)
	}
	if count != 10 {
		t.Errorf("after Stop, TotalHistoryCount = %d, want 10", count)
	}
	if buf.Flushed() != 10 {
		t.Errorf("Flushed = %d, want 10", buf.Flushed())
	}
}

func TestInsertBuffer_BatchThreshold(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store, InsertBufferConfig{BatchSize: 100, FlushInterval: time.Hour})

	for i := 0; i < 250; i++ {
		buf.Add(row("batch test", "Info", model.KindLog, 1))
	}

	buf.Stop()

	count, err := store.TotalHistoryCount()
	if err != nil {
		t.Fatalf("TotalHistoryCount: %v", err)
	}
	if count != 250 {
		t.Errorf("after batch insert, TotalHistoryCount = %d, want 250", count)
	}
}

func TestInsertBuffer_ConcurrentAdd(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store)

	var wg sync.WaitGroup
	numGoroutines := 10
	rowsPerGoroutine := 50

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rowsPerGoroutine; i++ {
				buf.Add(row("concurrent test", "Info", model.KindLog, 1))
			}
		}()
	}

	wg.Wait()
	buf.Stop()

	expected := int64(numGoroutines * rowsPerGoroutine)
	count, err := store.TotalHistoryCount()
	if err != nil {
		t.Fatalf("TotalHistoryCount: %v", err)
	}
	if count != expected {
		t.Errorf("concurrent insert TotalHistoryCount = %d, want %d", count, expected)
	}
}

func TestInsertBuffer_StopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	buf := NewInsertBuffer(store)

	buf.Add(row("idempotent stop", "Info", model.KindLog, 1))

	buf.Stop()
	buf.Stop()
	buf.Add(row("after stop", "Info", model.KindLog, 2))

	count, err := store.TotalHistoryCount()
	if err != nil {
		t.Fatalf("TotalHistoryCount: %v", err)
	}
	if count != 1 {
		t.Errorf("after double Stop, TotalHistoryCount = %d, want 1", count)
	}
}

type failingWriter struct {
	calls atomic.Int32
}

func (w *failingWriter) InsertHistoryBatch([]model.HistoryRow) error {
	w.calls.Add(1)
	return errors.New("disk full")
}

func TestInsertBuffer_WriterErrorDoesNotCount(t *testing.T) {
	w := &failingWriter{}
	buf := NewInsertBuffer(w)
	buf.Add(row("x", "Info", model.KindLog, 1))
	buf.Stop()

	if w.calls.Load() != 1 {
		t.Errorf("writer calls = %d, want 1", w.calls.Load())
	}
	if buf.Flushed() != 0 {
		t.Errorf("Flushed = %d, want 0", buf.Flushed())
	}
}

type blockingWriter struct {
	entered chan struct{}
	release chan struct{}
	rows    atomic.Int64
}

func (w *blockingWriter) InsertHistoryBatch(rows []model.HistoryRow) error {
	select {
	case w.entered <- struct{}{}:
	default:
	}
	<-w.release
	w.rows.Add(int64(len(rows)))
	return nil
}

func TestInsertBuffer_AddDoesNotBlockOnSlowWriter(t *testing.T) {
	w := &blockingWriter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	buf := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 1, FlushInterval: time.Hour, FlushQueueSize: 1})

	buf.Add(row("first", "Info", model.KindLog, 1))
	select {
	case <-w.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("flush worker never picked up the first batch")
	}

	added := make(chan struct{})
	go func() {
		defer close(added)
		for i := 2; i <= 5; i++ {
			buf.Add(row("more", "Info", model.KindLog, uint64(i)))
		}
	}()
	select {
	case <-added:
	case <-time.After(2 * time.Second):
		t.Fatal("Add blocked behind the writer")
	}

	// One row queued, two held pending, the last over the limit.
	if got := buf.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}

	close(w.release)
	buf.Stop()
	if got := w.rows.Load(); got != 4 {
		t.Errorf("rows written = %d, want 4", got)
	}
	if got := buf.Flushed(); got != 4 {
		t.Errorf("Flushed = %d, want 4", got)
	}
}
