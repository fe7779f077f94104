package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/ingest"
	"github.com/tinytelemetry/debugconsole/internal/model"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.LogEvent
}

func (s *recordingSink) Submit(ev model.LogEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Message
	}
	return out
}

func TestPumpEnvelopes_FlushesOnClose(t *testing.T) {
	sink := &recordingSink{}
	proc, err := ingest.NewEnvelopeProcessor(ingest.ProcessorModePassthrough, sink, "")
	require.NoError(t, err)

	lines := make(chan model.IngestEnvelope, 4)
	lines <- model.IngestEnvelope{Source: "tcp", Line: "first"}
	lines <- model.IngestEnvelope{Source: "tcp", Line: "second"}
	close(lines)

	require.NoError(t, pumpEnvelopes(context.Background(), lines, proc, time.Hour))
	assert.Equal(t, []string{"first", "second"}, sink.messages())
}

func TestPumpEnvelopes_PeriodicFlushReleasesPendingEvent(t *testing.T) {
	sink := &recordingSink{}
	proc, err := ingest.NewEnvelopeProcessor(ingest.ProcessorModeParse, sink, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := make(chan model.IngestEnvelope, 1)
	done := make(chan error, 1)
	go func() { done <- pumpEnvelopes(ctx, lines, proc, 10*time.Millisecond) }()

	// A lone plain-text line waits for continuation lines until a flush.
	lines <- model.IngestEnvelope{Source: "stdin", Line: "player spawned"}
	require.Eventually(t, func() bool {
		return len(sink.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop")
	}
}

type fakeHistory struct {
	rows  []model.HistoryRow
	err   error
	limit int
}

func (f *fakeHistory) RecentHistory(limit int) ([]model.HistoryRow, error) {
	f.limit = limit
	return f.rows, f.err
}

func TestRestoreHistory(t *testing.T) {
	store := console.NewStore(severity.NewRegistry(severity.AllVisible), console.Config{MaximumEntries: 5, Collapse: true})
	archive := &fakeHistory{rows: []model.HistoryRow{
		{Label: "NullRef", Callstack: "at A", Kind: model.KindException},
		{Label: "NullRef", Callstack: "at A", Kind: model.KindException},
		{Label: "loaded", Kind: model.KindLog},
		{Label: "bogus", Kind: model.KindUnknown},
	}}

	n, err := restoreHistory(store, archive)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 5, archive.limit)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 3, store.HistoryLen())
}

func TestRestoreHistory_Error(t *testing.T) {
	store := console.NewStore(severity.NewRegistry(severity.AllVisible), console.Config{MaximumEntries: 5, Collapse: true})
	_, err := restoreHistory(store, &fakeHistory{err: errors.New("db closed")})
	require.Error(t, err)
	assert.Zero(t, store.Len())
}
