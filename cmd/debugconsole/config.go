package main

import (
	"time"

	"github.com/tinytelemetry/debugconsole/internal/duckdb"
	"github.com/tinytelemetry/debugconsole/internal/model"
)

const (
	defaultMaximumEntries      = model.DefaultMaximumEntries
	defaultCollapse            = model.DefaultCollapse
	defaultUpdateInterval      = model.DefaultUpdateInterval
	defaultHubQueueSize        = model.DefaultHubQueueSize
	defaultBindHost            = "127.0.0.1"
	defaultTCPPort             = 4560
	defaultOTLPPort            = 4317
	defaultAPIPort             = 3000
	defaultMuxBufferSize       = DefaultMuxBuffer
	defaultQueryTimeout        = duckdb.DefaultQueryTimeout
	defaultInsertBatchSize     = 500
	defaultInsertFlushInterval = 250 * time.Millisecond
	defaultInsertFlushQueue    = 64
	defaultLogRetention        = 7 // days, 0 = disabled
	defaultIngestFlushInterval = 200 * time.Millisecond
	defaultSettingsInterval    = time.Second
	defaultSnapshotInterval    = 6 * time.Hour
	defaultSnapshotKeep        = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	MaximumEntries      int           `mapstructure:"maximum-entries"`
	CollapseIdentical   bool          `mapstructure:"collapse-identical"`
	ShowErrors          bool          `mapstructure:"show-errors"`
	ShowWarnings        bool          `mapstructure:"show-warnings"`
	ShowInfo            bool          `mapstructure:"show-info"`
	UpdateInterval      time.Duration `mapstructure:"update-interval"`
	ReverseScrollWheel  bool          `mapstructure:"reverse-scroll-wheel"`
	Headless            bool          `mapstructure:"headless"`
	Host                string        `mapstructure:"host"`
	Processor           string        `mapstructure:"processor-mode"`
	TCPEnabled          bool          `mapstructure:"tcp-enabled"`
	TCPPort             int           `mapstructure:"tcp-port"`
	TCPAddr             string        `mapstructure:"tcp-addr"`
	Files               []string      `mapstructure:"files"`
	FilesFromStart      bool          `mapstructure:"files-from-start"`
	OTLPEnabled         bool          `mapstructure:"otlp-enabled"`
	OTLPPort            int           `mapstructure:"otlp-port"`
	OTLPAddr            string        `mapstructure:"otlp-addr"`
	APIEnabled          bool          `mapstructure:"api-enabled"`
	APIPort             int           `mapstructure:"api-port"`
	APIAddr             string        `mapstructure:"api-addr"`
	MuxBufferSize       int           `mapstructure:"mux-buffer-size"`
	HubQueueSize        int           `mapstructure:"hub-queue-size"`
	ArchiveEnabled      bool          `mapstructure:"archive-enabled"`
	DBPath              string        `mapstructure:"db-path"`
	RestoreHistory      bool          `mapstructure:"restore-history"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`
	LogRetention        int           `mapstructure:"log-retention"`
	SnapshotEnabled     bool          `mapstructure:"snapshot-enabled"`
	SnapshotInterval    time.Duration `mapstructure:"snapshot-interval"`
	SnapshotDir         string        `mapstructure:"snapshot-dir"`
	SnapshotKeep        int           `mapstructure:"snapshot-keep"`
	LogLevel            string        `mapstructure:"log-level"`
	LogFormat           string        `mapstructure:"log-format"`
	LogPath             string        `mapstructure:"log-path"`
	SettingsPath        string        `mapstructure:"settings-path"`
	ConfigPath          string        `mapstructure:"-"` // not from config file
}
