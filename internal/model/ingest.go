package model

// IngestEnvelope carries one raw log line with source metadata.
// It is the transport contract between log sources and the ingest processor.
type IngestEnvelope struct {
	Source string
	Line   string
}

// EventSink accepts parsed log events. Submit reports whether the event was queued.
type EventSink interface {
	Submit(ev LogEvent) bool
}
