package console

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

var (
	// ErrNilCallback is returned when a nil handler is registered.
	ErrNilCallback = errors.New("console: nil callback")
	// ErrHubStopped is returned by commands issued after Run has returned.
	ErrHubStopped = errors.New("console: hub stopped")
	// ErrNotFound is returned when no live entry matches a lookup.
	ErrNotFound = errors.New("console: entry not found")
)

// DetailsFunc receives the full (label, callstack) pair of an activated row.
type DetailsFunc func(label, callstack string)

// HubConfig tunes the single-writer queue.
type HubConfig struct {
	QueueSize int
	Logger    *zap.Logger
}

type command struct {
	fn   func(*Store)
	done chan struct{}
}

// Hub serializes every Store mutation onto one goroutine. Ingest paths call
// Submit; readers and controls go through Do and Snapshot.
type Hub struct {
	store  *Store
	events chan model.LogEvent
	cmds   chan command
	logger *zap.Logger

	accepted atomic.Uint64
	dropped  atomic.Uint64
	rejected atomic.Uint64

	mu        sync.RWMutex
	listeners []func(model.HistoryRow)
	details   DetailsFunc

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewHub wraps store. The store must not be touched directly once Run starts.
func NewHub(store *Store, cfg HubConfig) *Hub {
	size := cfg.QueueSize
	if size <= 0 {
		size = model.DefaultHubQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:   store,
		events:  make(chan model.LogEvent, size),
		cmds:    make(chan command),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Submit queues ev without blocking. It returns false when the queue is full
// or the hub has stopped; such events are counted as dropped.
func (h *Hub) Submit(ev model.LogEvent) bool {
	select {
	case <-h.stopped:
		h.dropped.Add(1)
		return false
	default:
	}
	select {
	case h.events <- ev:
		return true
	default:
		if n := h.dropped.Add(1); n == 1 || n%1000 == 0 {
			h.logger.Warn("hub queue full, dropping events", zap.Uint64("dropped", n))
		}
		return false
	}
}

// OnAccepted registers fn to receive every event the store accepted.
// Listeners run on the writer goroutine and must not block.
func (h *Hub) OnAccepted(fn func(model.HistoryRow)) error {
	if fn == nil {
		return ErrNilCallback
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
	return nil
}

// OnDetails registers the handler fired by RequestDetails.
func (h *Hub) OnDetails(fn DetailsFunc) error {
	if fn == nil {
		return ErrNilCallback
	}
	h.mu.Lock()
	h.details = fn
	h.mu.Unlock()
	return nil
}

// Run drains the event and command queues until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.stopped) })
	h.logger.Info("console hub started",
		zap.String("mode", h.store.Mode().String()),
		zap.Int("maximum_entries", h.store.MaximumEntries()))

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("console hub stopped",
				zap.Uint64("accepted", h.accepted.Load()),
				zap.Uint64("dropped", h.dropped.Load()))
			return nil
		case ev := <-h.events:
			h.apply(ev)
		case cmd := <-h.cmds:
			h.drain()
			cmd.fn(h.store)
			close(cmd.done)
		}
	}
}

// drain applies the events already queued so a command observes every
// Submit that happened before it was issued.
func (h *Hub) drain() {
	for n := len(h.events); n > 0; n-- {
		h.apply(<-h.events)
	}
}

func (h *Hub) apply(ev model.LogEvent) {
	e, ok := h.store.Enqueue(ev.Message, ev.StackTrace, ev.Kind)
	if !ok {
		h.rejected.Add(1)
		h.logger.Debug("event kind not classified", zap.Stringer("kind", ev.Kind), zap.String("source", ev.Source))
		return
	}
	h.accepted.Add(1)

	h.mu.RLock()
	listeners := h.listeners
	h.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	// A collapsed entry keeps the class it was created with; the row records
	// the class of this occurrence.
	class, _ := h.store.Registry().Classify(ev.Kind)
	row := model.HistoryRow{
		Timestamp:   ts,
		Label:       e.Label,
		Callstack:   e.Callstack,
		Severity:    class.Name(),
		Kind:        ev.Kind,
		Fingerprint: e.Fingerprint(),
		Source:      ev.Source,
	}
	for _, fn := range listeners {
		fn(row)
	}
}

// Do runs fn on the writer goroutine and waits for it to finish.
func (h *Hub) Do(ctx context.Context, fn func(*Store)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case h.cmds <- cmd:
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns an immutable view of the store and acknowledges any
// pending visibility re-render.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := h.Do(ctx, func(s *Store) {
		snap = s.Snapshot()
		s.Registry().ClearDirty()
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.Accepted = h.accepted.Load()
	snap.Dropped = h.dropped.Load()
	snap.Rejected = h.rejected.Load()
	return snap, nil
}

// RequestDetails fires the details handler for the live entry with id.
func (h *Hub) RequestDetails(ctx context.Context, id uint64) error {
	var label, callstack string
	var found bool
	err := h.Do(ctx, func(s *Store) {
		if e, ok := s.Entry(id); ok {
			label, callstack, found = e.Label, e.Callstack, true
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	h.mu.RLock()
	fn := h.details
	h.mu.RUnlock()
	if fn != nil {
		fn(label, callstack)
	}
	return nil
}

// Stats returns the queue counters.
func (h *Hub) Stats() (accepted, dropped, rejected uint64) {
	return h.accepted.Load(), h.dropped.Load(), h.rejected.Load()
}
