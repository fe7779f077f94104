package ingest

import (
	"sync"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// PassthroughProcessor is a lightweight processor that avoids JSON parsing.
// Every non-empty line becomes one event whose kind is guessed from its text.
type PassthroughProcessor struct {
	mu         sync.RWMutex
	sink       model.EventSink
	sourceName string
}

// NewPassthroughProcessor creates a new passthrough processor.
func NewPassthroughProcessor(sink model.EventSink, sourceName string) *PassthroughProcessor {
	return &PassthroughProcessor{
		sink:       sink,
		sourceName: sourceName,
	}
}

func (p *PassthroughProcessor) Name() string { return ProcessorModePassthrough }

// ProcessLine processes an untagged line using the processor source name.
func (p *PassthroughProcessor) ProcessLine(line string) []model.LogEvent {
	return p.ProcessEnvelope(model.IngestEnvelope{
		Source: p.getSourceName(),
		Line:   line,
	})
}

// ProcessEnvelope processes one source-tagged line.
func (p *PassthroughProcessor) ProcessEnvelope(env model.IngestEnvelope) []model.LogEvent {
	if env.Line == "" {
		return nil
	}

	source := env.Source
	if source == "" {
		source = p.getSourceName()
	}

	ev := CreateFallbackEvent(env.Line)
	ev.Source = source
	events := []model.LogEvent{ev}
	submitAll(p.sink, events)
	return events
}

// Flush is a no-op; passthrough never buffers.
func (p *PassthroughProcessor) Flush() []model.LogEvent { return nil }

// SetSourceName updates the default source name for untagged lines.
func (p *PassthroughProcessor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}

func (p *PassthroughProcessor) getSourceName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sourceName
}
