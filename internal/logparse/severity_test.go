package logparse

import (
	"testing"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Standard forms
		{"TRACE", "TRACE"}, {"DEBUG", "DEBUG"}, {"INFO", "INFO"},
		{"WARN", "WARN"}, {"ERROR", "ERROR"}, {"FATAL", "FATAL"},
		{"ASSERT", "ASSERT"}, {"EXCEPTION", "EXCEPTION"}, {"LOG", "INFO"},
		// Variants
		{"TRC", "TRACE"}, {"DBG", "DEBUG"}, {"INF", "INFO"},
		{"WARNING", "WARN"}, {"WRN", "WARN"},
		{"ERR", "ERROR"}, {"ERRO", "ERROR"},
		{"ASSERTION", "ASSERT"}, {"EXC", "EXCEPTION"},
		{"CRITICAL", "FATAL"}, {"PANIC", "FATAL"},
		// Case insensitive
		{"info", "INFO"}, {"warn", "WARN"}, {"error", "ERROR"}, {"exception", "EXCEPTION"},
		// Prefix matching
		{"WARNING_LEVEL", "WARN"}, {"ERROR_CODE_42", "ERROR"},
		{"ASSERTION_FAILED", "ASSERT"}, {"EXCEPTIONAL", "EXCEPTION"},
		// Unknown defaults to INFO
		{"", "INFO"}, {"UNKNOWN", "INFO"}, {"foo", "INFO"},
		// Whitespace
		{"  INFO  ", "INFO"}, {"\tWARN\t", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeSeverity(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeverity(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractKindFromText(t *testing.T) {
	tests := []struct {
		input    string
		expected model.LogKind
	}{
		{"2024-01-01 INFO Starting server", model.KindLog},
		{"ERROR: connection refused", model.KindError},
		{"[WARN] disk usage high", model.KindWarning},
		{"FATAL out of memory", model.KindException},
		{"Assert failed: index < count", model.KindAssert},
		{"NullReferenceException thrown", model.KindLog},
		{"Exception: object disposed", model.KindException},
		{"DEBUG checking cache", model.KindLog},
		{"WARNING deprecated API", model.KindWarning},
		{"no severity here", model.KindLog},
		{"", model.KindLog},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ExtractKindFromText(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractKindFromText(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSeverityFromOTELNumber(t *testing.T) {
	tests := []struct {
		number   int
		expected string
	}{
		{0, ""}, {1, "TRACE"}, {5, "DEBUG"}, {9, "INFO"}, {12, "INFO"},
		{13, "WARN"}, {17, "ERROR"}, {21, "FATAL"}, {24, "FATAL"}, {25, ""},
	}
	for _, tt := range tests {
		if got := SeverityFromOTELNumber(tt.number); got != tt.expected {
			t.Errorf("SeverityFromOTELNumber(%d) = %q, want %q", tt.number, got, tt.expected)
		}
	}
}

func TestPinoLevelToString(t *testing.T) {
	tests := []struct {
		level    int
		expected string
	}{
		{10, "TRACE"}, {20, "DEBUG"}, {30, "INFO"}, {40, "WARN"},
		{50, "ERROR"}, {60, "FATAL"}, {35, "INFO"}, {99, "FATAL"},
	}
	for _, tt := range tests {
		if got := PinoLevelToString(tt.level); got != tt.expected {
			t.Errorf("PinoLevelToString(%d) = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected model.LogKind
	}{
		{"Exception", model.KindException},
		{"Assert", model.KindAssert},
		{"Log", model.KindLog},
		{"warning", model.KindWarning},
		{"warn", model.KindWarning},
		{"fatal", model.KindException},
		{"debug", model.KindLog},
		{"err", model.KindError},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.input); got != tt.expected {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
