package main

import (
	"context"
	"time"

	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/ingest"
	"github.com/tinytelemetry/debugconsole/internal/model"
)

// pumpEnvelopes feeds lines through proc until lines closes or ctx is done.
// Plain-text events wait for continuation lines, so a quiet source is
// flushed every flushEvery.
func pumpEnvelopes(ctx context.Context, lines <-chan model.IngestEnvelope, proc ingest.EnvelopeProcessor, flushEvery time.Duration) error {
	if flushEvery <= 0 {
		flushEvery = defaultIngestFlushInterval
	}
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	defer proc.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-lines:
			if !ok {
				return nil
			}
			proc.ProcessEnvelope(env)
		case <-ticker.C:
			proc.Flush()
		}
	}
}

// historyReader is the archive read the startup restore needs.
type historyReader interface {
	RecentHistory(limit int) ([]model.HistoryRow, error)
}

// restoreHistory replays the newest archived occurrences into store, oldest
// first. It must run before the hub owns the store, and it bypasses the
// accepted-event listeners so restored rows are not archived twice.
func restoreHistory(store *console.Store, archive historyReader) (int, error) {
	rows, err := archive.RecentHistory(store.MaximumEntries())
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, row := range rows {
		if _, ok := store.Enqueue(row.Label, row.Callstack, row.Kind); ok {
			restored++
		}
	}
	return restored, nil
}
