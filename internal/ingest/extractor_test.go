package ingest

import (
	"testing"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

func TestParseJSONLogEvent_Pino(t *testing.T) {
	t.Parallel()
	line := `{"level":30,"time":1705312245000,"msg":"request processed","hostname":"web1","pid":1234}`
	ev, ok := ParseJSONLogEvent(line)
	if !ok {
		t.Fatal("ParseJSONLogEvent failed for pino format")
	}
	if ev.Kind != model.KindLog {
		t.Errorf("kind = %v, want log (pino level 30)", ev.Kind)
	}
	if ev.Message != "request processed" {
		t.Errorf("message = %q, want 'request processed'", ev.Message)
	}
	if ev.Timestamp.Year() != 2024 {
		t.Errorf("timestamp year = %d, want 2024", ev.Timestamp.Year())
	}
}

func TestParseJSONLogEvent_Winston(t *testing.T) {
	t.Parallel()
	line := `{"level":"error","message":"connection refused","timestamp":"2024-01-15T10:30:45.000Z","stack":"Error: connection refused\n    at connect (net.js:10)"}`
	ev, ok := ParseJSONLogEvent(line)
	if !ok {
		t.Fatal("ParseJSONLogEvent failed for winston format")
	}
	if ev.Kind != model.KindError {
		t.Errorf("kind = %v, want error", ev.Kind)
	}
	if ev.Message != "connection refused" {
		t.Errorf("message = %q, want 'connection refused'", ev.Message)
	}
	if ev.StackTrace != "Error: connection refused\n    at connect (net.js:10)" {
		t.Errorf("stack = %q", ev.StackTrace)
	}
}

func TestParseJSONLogEvent_HostKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want model.LogKind
	}{
		{`{"logType":"Assert","condition":"index out of range"}`, model.KindAssert},
		{`{"logType":"Exception","condition":"NullReferenceException"}`, model.KindException},
		{`{"level":"warn","msg":"slow"}`, model.KindWarning},
		{`{"level":"fatal","msg":"dead"}`, model.KindException},
		{`{"level":60,"msg":"dead"}`, model.KindException},
		{`{"msg":"ERROR in handler"}`, model.KindError},
		{`{"msg":"plain"}`, model.KindLog},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			ev, ok := ParseJSONLogEvent(tt.line)
			if !ok {
				t.Fatal("ParseJSONLogEvent failed")
			}
			if ev.Kind != tt.want {
				t.Errorf("kind = %v, want %v", ev.Kind, tt.want)
			}
		})
	}
}

func TestParseJSONLogEvent_NestedErrorStack(t *testing.T) {
	t.Parallel()
	line := `{"level":50,"err":{"message":"boom","stack":"Error: boom\n    at main"}}`
	ev, ok := ParseJSONLogEvent(line)
	if !ok {
		t.Fatal("ParseJSONLogEvent failed")
	}
	if ev.Message != "boom" || ev.StackTrace != "Error: boom\n    at main" {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseJSONLogEvent_MultiLineMessageSplitsStack(t *testing.T) {
	t.Parallel()
	ev, ok := ParseJSONLogEvent(`{"msg":"first line\nsecond line\nthird"}`)
	if !ok {
		t.Fatal("ParseJSONLogEvent failed")
	}
	if ev.Message != "first line" || ev.StackTrace != "second line\nthird" {
		t.Errorf("message/stack = %q/%q", ev.Message, ev.StackTrace)
	}
}

func TestParseJSONLogEvent_InvalidJSON(t *testing.T) {
	t.Parallel()
	if _, ok := ParseJSONLogEvent("this is not json"); ok {
		t.Error("ParseJSONLogEvent should fail for invalid JSON")
	}
}

func TestParseJSONLogEvents_OTELEnvelope(t *testing.T) {
	t.Parallel()
	line := `{"resourceLogs":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"api"}}]},` +
		`"scopeLogs":[{"logRecords":[` +
		`{"timeUnixNano":"1705312245000000000","severityNumber":17,"body":{"stringValue":"db timeout"},` +
		`"attributes":[{"key":"exception.stacktrace","value":{"stringValue":"at db.Query\nat main"}}]},` +
		`{"severityText":"WARN","body":{"stringValue":"retrying"}},` +
		`{"attributes":[{"key":"exception.type","value":{"stringValue":"IOError"}},{"key":"exception.message","value":{"stringValue":"disk full"}}],"body":""}` +
		`]}]}]}`

	events := ParseJSONLogEvents(line)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Kind != model.KindError || events[0].Message != "db timeout" || events[0].StackTrace != "at db.Query\nat main" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[0].Timestamp.Year() != 2024 {
		t.Errorf("events[0] year = %d, want 2024", events[0].Timestamp.Year())
	}
	if events[1].Kind != model.KindWarning || events[1].Message != "retrying" {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[2].Kind != model.KindException || events[2].Message != "IOError: disk full" {
		t.Errorf("events[2] = %+v", events[2])
	}
}

func TestCreateFallbackEvent(t *testing.T) {
	t.Parallel()
	ev := CreateFallbackEvent("2024-01-15 ERROR: connection refused\r\n")
	if ev.Kind != model.KindError {
		t.Errorf("kind = %v, want error", ev.Kind)
	}
	if ev.Message != "2024-01-15 ERROR: connection refused" {
		t.Errorf("message = %q", ev.Message)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestExtractStringField(t *testing.T) {
	t.Parallel()
	raw := map[string]interface{}{
		"msg":   "hello",
		"count": float64(42),
	}

	if got := ExtractStringField(raw, "msg"); got != "hello" {
		t.Errorf("ExtractStringField(msg) = %q, want 'hello'", got)
	}
	if got := ExtractStringField(raw, "missing", "msg", "message"); got != "hello" {
		t.Errorf("ExtractStringField(missing,msg,message) = %q, want 'hello'", got)
	}
	if got := ExtractStringField(raw, "count"); got != "42" {
		t.Errorf("ExtractStringField(count) = %q, want '42'", got)
	}
	if got := ExtractStringField(raw, "nonexistent"); got != "" {
		t.Errorf("ExtractStringField(nonexistent) = %q, want empty", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value interface{}
		ok    bool
		year  int
	}{
		{"RFC3339", "2024-01-15T10:30:45Z", true, 2024},
		{"unix seconds", float64(946684800), true, 2000},
		{"unix millis", float64(1705312245000), true, 2024},
		{"garbage", "yesterday", false, 0},
		{"missing", nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts, ok := parseTimestamp(tt.value)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && ts.Year() != tt.year {
				t.Errorf("year = %d, want %d", ts.Year(), tt.year)
			}
		})
	}
}

func TestCountJSONDepth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line     string
		expected int
	}{
		{`{`, 1},
		{`}`, -1},
		{`{"key": "value"}`, 0},
		{`{"nested": {`, 2},
		{`"key": "val with { brace"`, 0}, // braces inside strings
		{`}}`, -2},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			if got := CountJSONDepth(tt.line); got != tt.expected {
				t.Errorf("CountJSONDepth(%q) = %d, want %d", tt.line, got, tt.expected)
			}
		})
	}
}
