package duckdb

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

// HistoryWriter persists batches of accepted console events.
type HistoryWriter interface {
	InsertHistoryBatch(rows []model.HistoryRow) error
}

// InsertBuffer batches history rows and flushes them to DuckDB asynchronously.
// Add never writes to DuckDB: full batches are handed to a flush goroutine,
// and when its queue is full the rows wait for the next tick. Rows beyond
// maxPending are dropped and counted.
type InsertBuffer struct {
	writer        HistoryWriter
	logger        *zap.Logger
	mu            sync.Mutex
	pending       []model.HistoryRow
	flushChan     chan []model.HistoryRow
	maxBatch      int
	maxPending    int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once
	stopped       atomic.Bool

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
	flushed           atomic.Int64
	dropped           atomic.Int64
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Logger         *zap.Logger
}

// NewInsertBuffer creates a new insert buffer that flushes to writer.
func NewInsertBuffer(writer HistoryWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := 500
	flushInterval := 250 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	logger := zap.NewNop()
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		logger:        logger.With(zap.String("component", "archive-buffer")),
		pending:       make([]model.HistoryRow, 0, batchSize),
		flushChan:     make(chan []model.HistoryRow, flushQueueSize),
		maxBatch:      batchSize,
		maxPending:    batchSize * (flushQueueSize + 1),
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// logBackpressure warns at most once per 10 seconds when the flush queue is
// full.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		b.logger.Warn("archive falling behind",
			zap.Int64("backpressure_events", count),
			zap.Int64("dropped_rows", b.dropped.Load()))
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]model.HistoryRow, 0, b.maxBatch)
	b.mu.Unlock()

	if !b.handoff(batch) {
		// Only the tick goroutine gets here, so writing inline is safe.
		b.logBackpressure()
		b.flushBatch(batch)
	}
}

func (b *InsertBuffer) handoff(batch []model.HistoryRow) bool {
	select {
	case b.flushChan <- batch:
		return true
	default:
		return false
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.flushBatch(batch)
	}
}

func (b *InsertBuffer) flushBatch(batch []model.HistoryRow) {
	if len(batch) == 0 {
		return
	}
	if err := b.writer.InsertHistoryBatch(batch); err != nil {
		b.logger.Error("flush failed", zap.Int("rows", len(batch)), zap.Error(err))
		return
	}
	b.flushed.Add(int64(len(batch)))
}

// Add queues a row for batch insertion. It never blocks on DuckDB, so it is
// safe to call from the console hub. Rows added after Stop are ignored.
func (b *InsertBuffer) Add(row model.HistoryRow) {
	if b.stopped.Load() {
		return
	}

	b.mu.Lock()
	if len(b.pending) >= b.maxPending {
		b.mu.Unlock()
		b.dropped.Add(1)
		b.logBackpressure()
		return
	}
	b.pending = append(b.pending, row)
	var batch []model.HistoryRow
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]model.HistoryRow, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch == nil || b.handoff(batch) {
		return
	}
	// Queue full: put the rows back in front for the tick loop.
	b.mu.Lock()
	b.pending = append(batch, b.pending...)
	b.mu.Unlock()
	b.logBackpressure()
}

// Flushed reports how many rows have been written successfully.
func (b *InsertBuffer) Flushed() int64 {
	return b.flushed.Load()
}

// Dropped reports how many rows were discarded because the archive fell too
// far behind.
func (b *InsertBuffer) Dropped() int64 {
	return b.dropped.Load()
}

// Stop flushes remaining rows and waits for all writes to complete.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)
		// tickLoop's final drain must land before flushChan closes.
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
	})
}
