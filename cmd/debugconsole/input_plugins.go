package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/logsource"
	"github.com/tinytelemetry/debugconsole/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring line inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled     bool
	TCPAddr        string
	Files          []string
	FilesFromStart bool
	Logger         *zap.Logger
}

// buildInputPlugins returns tcp, then one plugin per tailed file, then stdin.
func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	plugins := make([]InputSourcePlugin, 0, 2+len(cfg.Files))
	plugins = append(plugins, tcpInputPlugin{
		addr:    cfg.TCPAddr,
		enabled: cfg.TCPEnabled,
		logger:  logger,
	})
	for _, path := range cfg.Files {
		if path == "" {
			continue
		}
		plugins = append(plugins, fileInputPlugin{
			path:      path,
			fromStart: cfg.FilesFromStart,
			logger:    logger,
		})
	}
	plugins = append(plugins, stdinInputPlugin{logger: logger})
	return plugins
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
	logger  *zap.Logger
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{Logger: p.logger})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type fileInputPlugin struct {
	path      string
	fromStart bool
	logger    *zap.Logger
}

func (p fileInputPlugin) Name() string { return "file:" + p.path }

func (p fileInputPlugin) Enabled() bool { return true }

func (p fileInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	src, err := logsource.NewFileSource(ctx, p.path, logsource.FileConfig{
		FromStart: p.fromStart,
		Logger:    p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", p.path, err)
	}
	return src, nil
}

type stdinInputPlugin struct {
	logger *zap.Logger
}

func (p stdinInputPlugin) Name() string { return "stdin" }

// Enabled reports whether stdin is piped rather than a terminal.
func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx, logsource.StdinConfig{Logger: p.logger}), nil
}
