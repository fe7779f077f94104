package model

import "time"

// Shared defaults used by the console binary, the API, and the TUI.
const (
	DefaultMaximumEntries = 1000
	DefaultCollapse       = true
	DefaultUpdateInterval = 500 * time.Millisecond
	DefaultHubQueueSize   = 10_000
)
