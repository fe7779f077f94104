package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/debugconsole/internal/logging"
	"github.com/tinytelemetry/debugconsole/internal/settings"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool
	var headless bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/debugconsole/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&headless, "headless", false, "run without the terminal UI")
	flag.Parse()

	if showVersion {
		fmt.Printf("Debug Console - Live Log Console\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if headless {
		cfg.Headless = true
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "debugconsole", "console.duckdb")

	v := viper.New()
	v.SetEnvPrefix("DEBUGCONSOLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("maximum-entries", defaultMaximumEntries)
	v.SetDefault("collapse-identical", defaultCollapse)
	v.SetDefault("show-errors", true)
	v.SetDefault("show-warnings", true)
	v.SetDefault("show-info", true)
	v.SetDefault("update-interval", defaultUpdateInterval)
	v.SetDefault("reverse-scroll-wheel", false)
	v.SetDefault("headless", false)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("processor-mode", "parse")
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("files", []string{})
	v.SetDefault("files-from-start", false)
	v.SetDefault("otlp-enabled", false)
	v.SetDefault("otlp-port", defaultOTLPPort)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("hub-queue-size", defaultHubQueueSize)
	v.SetDefault("archive-enabled", true)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("restore-history", false)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("insert-flush-queue-size", defaultInsertFlushQueue)
	v.SetDefault("log-retention", defaultLogRetention)
	v.SetDefault("snapshot-enabled", false)
	v.SetDefault("snapshot-interval", defaultSnapshotInterval)
	v.SetDefault("snapshot-dir", filepath.Join(home, ".local", "share", "debugconsole", "snapshots"))
	v.SetDefault("snapshot-keep", defaultSnapshotKeep)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")
	v.SetDefault("log-path", logging.DefaultPath())
	v.SetDefault("settings-path", settings.DefaultPath())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "debugconsole", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if cfg.MaximumEntries < 1 {
		return cfg, fmt.Errorf("invalid maximum-entries: %d", cfg.MaximumEntries)
	}
	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return cfg, fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}
	if cfg.OTLPPort <= 0 || cfg.OTLPPort > 65535 {
		return cfg, fmt.Errorf("invalid otlp-port: %d", cfg.OTLPPort)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}

	if cfg.SnapshotEnabled && cfg.SnapshotInterval <= 0 {
		return cfg, fmt.Errorf("invalid snapshot-interval: %s", cfg.SnapshotInterval)
	}

	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.SnapshotDir = expandHome(home, cfg.SnapshotDir)
	cfg.SettingsPath = expandHome(home, cfg.SettingsPath)
	cfg.LogPath = expandHome(home, cfg.LogPath)
	for i, f := range cfg.Files {
		cfg.Files[i] = expandHome(home, f)
	}

	if cfg.Host == "" {
		cfg.Host = defaultBindHost
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.OTLPAddr == "" {
		cfg.OTLPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.OTLPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

// expandHome expands a leading ~/ in path.
func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
