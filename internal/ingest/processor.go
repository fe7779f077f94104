package ingest

import (
	"strings"
	"sync"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// maxStackLines caps the continuation lines folded into one event.
const maxStackLines = 256

// Processor turns raw lines into log events. Multi-line JSON objects are
// accumulated by brace depth, and indented lines following a plain-text event
// become that event's stack trace. State is kept per source so interleaved
// inputs do not corrupt each other.
type Processor struct {
	mu         sync.Mutex
	sink       model.EventSink
	sourceName string
	sources    map[string]*sourceState
}

type sourceState struct {
	// JSON accumulation for multi-line JSON support
	jsonBuffer   strings.Builder
	jsonDepth    int
	inJSONObject bool

	// Plain-text event waiting for continuation lines
	pending    *model.LogEvent
	stack      []string
	stackLines int
}

// NewProcessor creates a new log processor.
func NewProcessor(sink model.EventSink, sourceName string) *Processor {
	return &Processor{
		sink:       sink,
		sourceName: sourceName,
		sources:    make(map[string]*sourceState),
	}
}

func (p *Processor) Name() string { return ProcessorModeParse }

// ProcessLine processes an untagged line using the processor source name.
func (p *Processor) ProcessLine(line string) []model.LogEvent {
	return p.ProcessEnvelope(model.IngestEnvelope{Line: line})
}

// ProcessEnvelope processes one source-tagged line and returns the events it
// completed. It returns nil while a JSON object or a stack trace is still
// being accumulated.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) []model.LogEvent {
	p.mu.Lock()
	source := env.Source
	if source == "" {
		source = p.sourceName
	}
	st := p.state(source)
	events := p.processLine(st, source, env.Line)
	p.mu.Unlock()

	submitAll(p.sink, events)
	return events
}

// Flush emits every pending plain-text event and discards incomplete JSON.
func (p *Processor) Flush() []model.LogEvent {
	p.mu.Lock()
	var events []model.LogEvent
	for _, st := range p.sources {
		if ev, ok := st.takePending(); ok {
			events = append(events, ev)
		}
		st.resetJSONAccumulation()
	}
	p.mu.Unlock()

	submitAll(p.sink, events)
	return events
}

// SetSourceName updates the default source name for untagged lines.
func (p *Processor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}

func (p *Processor) state(source string) *sourceState {
	st, ok := p.sources[source]
	if !ok {
		st = &sourceState{}
		p.sources[source] = st
	}
	return st
}

func (p *Processor) processLine(st *sourceState, source, line string) []model.LogEvent {
	if st.inJSONObject {
		return st.continueJSON(source, line)
	}

	if st.pending != nil && isContinuationLine(line) {
		if st.stackLines < maxStackLines {
			st.stack = append(st.stack, strings.TrimRight(line, "\r"))
			st.stackLines++
		}
		return nil
	}

	var events []model.LogEvent
	if ev, ok := st.takePending(); ok {
		events = append(events, ev)
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return events
	}

	if strings.HasPrefix(trimmed, "{") {
		st.inJSONObject = true
		st.jsonBuffer.Reset()
		st.jsonDepth = 0
		return append(events, st.continueJSON(source, line)...)
	}

	ev := CreateFallbackEvent(line)
	ev.Source = source
	st.pending = &ev
	return events
}

// continueJSON appends line to the JSON buffer and parses it once the object
// closes. A line that does not parse as JSON falls back to plain text.
func (st *sourceState) continueJSON(source, line string) []model.LogEvent {
	st.jsonBuffer.WriteString(line)
	st.jsonBuffer.WriteString("\n")
	st.jsonDepth += CountJSONDepth(line)
	if st.jsonDepth > 0 {
		return nil
	}

	completeJSON := strings.TrimSpace(st.jsonBuffer.String())
	st.resetJSONAccumulation()

	events := ParseJSONLogEvents(completeJSON)
	if events == nil {
		ev := CreateFallbackEvent(completeJSON)
		ev.Source = source
		st.pending = &ev
		return nil
	}
	for i := range events {
		events[i].Source = source
	}
	return events
}

func (st *sourceState) takePending() (model.LogEvent, bool) {
	if st.pending == nil {
		return model.LogEvent{}, false
	}
	ev := *st.pending
	if len(st.stack) > 0 {
		extra := strings.Join(st.stack, "\n")
		if ev.StackTrace != "" {
			ev.StackTrace += "\n" + extra
		} else {
			ev.StackTrace = extra
		}
	}
	st.pending = nil
	st.stack = st.stack[:0]
	st.stackLines = 0
	return ev, true
}

// resetJSONAccumulation resets the JSON accumulation state.
func (st *sourceState) resetJSONAccumulation() {
	st.inJSONObject = false
	st.jsonDepth = 0
	st.jsonBuffer.Reset()
}

// isContinuationLine reports whether line belongs to the stack trace of the
// event before it.
func isContinuationLine(line string) bool {
	if line == "" {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return strings.TrimSpace(line) != ""
	}
	for _, prefix := range []string{"at ", "Caused by:", "--- End of", "...", "UnityEngine.", "Rethrow as "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}
