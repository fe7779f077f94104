package model

import (
	"strings"
	"time"
)

// LogKind is the host-level kind of a single log call.
// The zero value is KindUnknown, which no severity bucket accepts.
type LogKind int

const (
	KindUnknown LogKind = iota
	KindLog
	KindWarning
	KindError
	KindAssert
	KindException
)

var kindNames = map[LogKind]string{
	KindUnknown:   "unknown",
	KindLog:       "log",
	KindWarning:   "warning",
	KindError:     "error",
	KindAssert:    "assert",
	KindException: "exception",
}

func (k LogKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseLogKind maps a kind name ("log", "Warning", "EXCEPTION", ...) to a LogKind.
func ParseLogKind(s string) (LogKind, bool) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if k != KindUnknown && name == needle {
			return k, true
		}
	}
	return KindUnknown, false
}

// LogEvent is one physical log call delivered by an ingest path.
// It is the inbound contract of the console: (message, stack trace, kind).
type LogEvent struct {
	Timestamp  time.Time
	Message    string
	StackTrace string
	Kind       LogKind
	Source     string // "tcp", "stdin", "file", "otlp"
}

// SeverityCount is a read-only snapshot of one severity bucket.
type SeverityCount struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Visible bool   `json:"visible"`
}

// HistoryRow is one archived occurrence as persisted by the history archive.
type HistoryRow struct {
	Timestamp   time.Time
	Label       string
	Callstack   string
	Severity    string
	Kind        LogKind
	Fingerprint uint64
	Source      string
}
