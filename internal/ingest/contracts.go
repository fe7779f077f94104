package ingest

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

const (
	// ProcessorModeParse parses JSON, OTEL JSON and multi-line plain text.
	ProcessorModeParse = "parse"
	// ProcessorModePassthrough turns every line into one event without parsing.
	ProcessorModePassthrough = "passthrough"
)

// EnvelopeProcessor consumes source-tagged ingest lines and emits log events.
type EnvelopeProcessor interface {
	Name() string
	// ProcessEnvelope returns the events completed by this line. Events are
	// also submitted to the processor's sink.
	ProcessEnvelope(model.IngestEnvelope) []model.LogEvent
	// Flush emits any event still waiting for continuation lines.
	Flush() []model.LogEvent
}

// NewEnvelopeProcessor creates the processor for mode. An empty mode selects
// ProcessorModeParse.
func NewEnvelopeProcessor(mode string, sink model.EventSink, sourceName string) (EnvelopeProcessor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ProcessorModeParse:
		return NewProcessor(sink, sourceName), nil
	case ProcessorModePassthrough:
		return NewPassthroughProcessor(sink, sourceName), nil
	default:
		return nil, fmt.Errorf("ingest: unknown processor mode %q", mode)
	}
}

func submitAll(sink model.EventSink, events []model.LogEvent) {
	if sink == nil {
		return
	}
	for _, ev := range events {
		sink.Submit(ev)
	}
}
