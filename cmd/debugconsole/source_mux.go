package main

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 50_000

// SourceMultiplexer fans every input source into one envelope stream, so a
// single processor goroutine feeds the hub.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	sources   []NamedLogSource
	forwarded []atomic.Int64
	lines     chan model.IngestEnvelope

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSourceMultiplexer creates a multiplexer over sources. A nil logger
// disables logging.
func NewSourceMultiplexer(parent context.Context, sources []NamedLogSource, buffer int, logger *zap.Logger) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &SourceMultiplexer{
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(zap.String("component", "mux")),
		sources:   sources,
		forwarded: make([]atomic.Int64, len(sources)),
		lines:     make(chan model.IngestEnvelope, buffer),
	}
}

// Start begins forwarding. The output closes once every source has closed.
func (m *SourceMultiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}

		for i := range m.sources {
			m.wg.Add(1)
			go m.forward(i)
		}

		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

// Stop stops every source and waits for the forwarders to exit.
func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.sources) > 0
}

// Names lists the source names in registration order.
func (m *SourceMultiplexer) Names() []string {
	names := make([]string, len(m.sources))
	for i, src := range m.sources {
		names[i] = src.Name()
	}
	return names
}

// Forwarded returns the number of non-empty lines forwarded per source name.
func (m *SourceMultiplexer) Forwarded() map[string]int64 {
	out := make(map[string]int64, len(m.sources))
	for i, src := range m.sources {
		out[src.Name()] += m.forwarded[i].Load()
	}
	return out
}

func (m *SourceMultiplexer) Lines() <-chan model.IngestEnvelope {
	return m.lines
}

func (m *SourceMultiplexer) forward(i int) {
	defer m.wg.Done()

	src := m.sources[i]
	sourceLines := src.Lines()
	for {
		select {
		case <-m.ctx.Done():
			return
		case line, ok := <-sourceLines:
			if !ok {
				m.logger.Debug("source closed",
					zap.String("source", src.Name()),
					zap.Int64("forwarded", m.forwarded[i].Load()))
				return
			}
			if line.Line == "" {
				continue
			}
			if line.Source == "" {
				line.Source = src.Name()
			}
			select {
			case m.lines <- line:
				m.forwarded[i].Add(1)
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.lines)
	})
}
