package ingest

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tinytelemetry/debugconsole/internal/model"
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

var ignoreTimestamp = cmpopts.IgnoreFields(model.LogEvent{}, "Timestamp")

func TestNewEnvelopeProcessor_DefaultParse(t *testing.T) {
	t.Parallel()

	p, err := NewEnvelopeProcessor("", nil, "")
	if err != nil {
		t.Fatalf("NewEnvelopeProcessor returned error: %v", err)
	}
	if p.Name() != ProcessorModeParse {
		t.Fatalf("processor name = %q, want %q", p.Name(), ProcessorModeParse)
	}
	if _, ok := p.(*Processor); !ok {
		t.Fatalf("processor type = %T, want *Processor", p)
	}
}

func TestNewEnvelopeProcessor_Passthrough(t *testing.T) {
	t.Parallel()

	p, err := NewEnvelopeProcessor("Passthrough", nil, "")
	if err != nil {
		t.Fatalf("NewEnvelopeProcessor returned error: %v", err)
	}
	if _, ok := p.(*PassthroughProcessor); !ok {
		t.Fatalf("processor type = %T, want *PassthroughProcessor", p)
	}
}

func TestNewEnvelopeProcessor_InvalidMode(t *testing.T) {
	t.Parallel()

	if _, err := NewEnvelopeProcessor("unknown", nil, ""); err == nil {
		t.Fatal("expected error for invalid processor mode")
	}
}

func TestPassthroughProcessor_SourceOverride(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewPassthroughProcessor(sink, "stdin")

	p.ProcessLine("WARNING low disk")
	p.ProcessEnvelope(model.IngestEnvelope{Source: "tcp", Line: "hello"})
	if got := p.ProcessEnvelope(model.IngestEnvelope{Line: ""}); got != nil {
		t.Errorf("empty line produced %v", got)
	}

	want := []model.LogEvent{
		{Message: "WARNING low disk", Kind: model.KindWarning, Source: "stdin"},
		{Message: "hello", Kind: model.KindLog, Source: "tcp"},
	}
	if diff := cmp.Diff(want, sink.events, ignoreTimestamp); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessor_PlainTextCollectsStackTrace(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewProcessor(sink, "stdin")

	lines := []string{
		"Exception: object disposed",
		"  at Foo.Bar()",
		"\tat Main()",
		"INFO next message",
	}
	var emitted []model.LogEvent
	for _, line := range lines {
		emitted = append(emitted, p.ProcessLine(line)...)
	}

	want := []model.LogEvent{
		{Message: "Exception: object disposed", StackTrace: "  at Foo.Bar()\n\tat Main()", Kind: model.KindException, Source: "stdin"},
	}
	if diff := cmp.Diff(want, emitted, ignoreTimestamp); diff != "" {
		t.Errorf("emitted mismatch (-want +got):\n%s", diff)
	}

	flushed := p.Flush()
	if len(flushed) != 1 || flushed[0].Message != "INFO next message" || flushed[0].StackTrace != "" {
		t.Fatalf("flushed = %+v", flushed)
	}
	if len(sink.events) != 2 {
		t.Errorf("sink events = %d, want 2", len(sink.events))
	}
	if got := p.Flush(); len(got) != 0 {
		t.Errorf("second Flush emitted %d events", len(got))
	}
}

func TestProcessor_MultiLineJSON(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewProcessor(sink, "tcp")

	if got := p.ProcessLine(`{`); got != nil {
		t.Fatalf("open brace emitted %v", got)
	}
	if got := p.ProcessLine(`  "level": "error",`); got != nil {
		t.Fatalf("partial object emitted %v", got)
	}
	got := p.ProcessLine(`  "msg": "disk {full}"}`)

	want := []model.LogEvent{{Message: "disk {full}", Kind: model.KindError, Source: "tcp"}}
	if diff := cmp.Diff(want, got, ignoreTimestamp); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessor_JSONFlushesPendingText(t *testing.T) {
	t.Parallel()

	p := NewProcessor(nil, "stdin")
	p.ProcessLine("first plain line")
	got := p.ProcessLine(`{"level":"warn","msg":"json line"}`)

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Message != "first plain line" || got[1].Message != "json line" || got[1].Kind != model.KindWarning {
		t.Errorf("events = %+v", got)
	}
}

func TestProcessor_SourcesDoNotInterleave(t *testing.T) {
	t.Parallel()

	p := NewProcessor(nil, "")
	p.ProcessEnvelope(model.IngestEnvelope{Source: "a", Line: "ERROR from a"})
	p.ProcessEnvelope(model.IngestEnvelope{Source: "b", Line: "ERROR from b"})
	p.ProcessEnvelope(model.IngestEnvelope{Source: "a", Line: "  at a.go:1"})

	flushed := p.Flush()
	bySource := make(map[string]model.LogEvent)
	for _, ev := range flushed {
		bySource[ev.Source] = ev
	}
	if bySource["a"].StackTrace != "  at a.go:1" {
		t.Errorf("source a stack = %q", bySource["a"].StackTrace)
	}
	if bySource["b"].StackTrace != "" {
		t.Errorf("source b stack = %q, want empty", bySource["b"].StackTrace)
	}
}

func TestIsContinuationLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want bool
	}{
		{"  at Foo()", true},
		{"\tat Bar()", true},
		{"at Baz()", true},
		{"Caused by: java.io.IOException", true},
		{"UnityEngine.Debug:LogError(Object)", true},
		{"   ", false},
		{"", false},
		{"INFO new event", false},
	}
	for _, tt := range tests {
		if got := isContinuationLine(tt.line); got != tt.want {
			t.Errorf("isContinuationLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
