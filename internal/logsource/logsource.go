// Package logsource adapts the console's inputs (stdin, TCP, tailed files)
// to a common line-channel interface.
package logsource

import "github.com/tinytelemetry/debugconsole/internal/model"

// LogSource is a unified interface for all log input sources (TCP, file, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of log lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "file:<path>", "stdin"
}
