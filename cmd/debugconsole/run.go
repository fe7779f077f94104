package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/debugconsole/internal/backup"
	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/duckdb"
	"github.com/tinytelemetry/debugconsole/internal/httpserver"
	"github.com/tinytelemetry/debugconsole/internal/ingest"
	"github.com/tinytelemetry/debugconsole/internal/logging"
	"github.com/tinytelemetry/debugconsole/internal/otlpreceiver"
	"github.com/tinytelemetry/debugconsole/internal/settings"
	"github.com/tinytelemetry/debugconsole/internal/severity"
	"github.com/tinytelemetry/debugconsole/internal/tui"
)

// run wires the console hub to its inputs and surfaces and blocks until the
// TUI exits or, in headless mode, a signal arrives.
func run(cfg appConfig) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	base := settings.Settings{
		CollapsedIdenticalLogEntries: cfg.CollapseIdentical,
		MaximumNumberOfLogEntries:    cfg.MaximumEntries,
		ShowErrors:                   cfg.ShowErrors,
		ShowWarnings:                 cfg.ShowWarnings,
		ShowInfo:                     cfg.ShowInfo,
	}
	persisted, err := settings.Load(cfg.SettingsPath, base)
	if err != nil {
		logger.Warn("ignoring unreadable settings file", zap.String("path", cfg.SettingsPath), zap.Error(err))
		persisted = base
	}

	store := console.NewStore(severity.NewRegistry(persisted.Visibility()), persisted.StoreConfig())
	hub := console.NewHub(store, console.HubConfig{QueueSize: cfg.HubQueueSize, Logger: logger})

	// The archive is optional; the console works without it.
	var archive *duckdb.Store
	var archiveAPI httpserver.Archive
	if cfg.ArchiveEnabled {
		archive, err = duckdb.NewStore(cfg.DBPath, duckdb.StoreConfig{QueryTimeout: cfg.QueryTimeout, Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer archive.Close()
		archiveAPI = archive

		if cfg.RestoreHistory {
			n, err := restoreHistory(store, archive)
			if err != nil {
				logger.Warn("history restore failed", zap.Error(err))
			} else {
				logger.Info("history restored", zap.Int("rows", n))
			}
		}
		if err := archive.RecordSession(persisted.MaximumNumberOfLogEntries, persisted.CollapsedIdenticalLogEntries); err != nil {
			logger.Warn("recording session failed", zap.Error(err))
		}

		insertBuffer := duckdb.NewInsertBuffer(archive, duckdb.InsertBufferConfig{
			BatchSize:      cfg.InsertBatchSize,
			FlushInterval:  cfg.InsertFlushInterval,
			FlushQueueSize: cfg.InsertFlushQueue,
			Logger:         logger,
		})
		defer func() {
			insertBuffer.Stop()
			logger.Info("archive buffer stopped",
				zap.Int64("flushed", insertBuffer.Flushed()),
				zap.Int64("dropped", insertBuffer.Dropped()))
		}()
		if err := hub.OnAccepted(insertBuffer.Add); err != nil {
			return err
		}

		retentionCleaner := duckdb.NewRetentionCleaner(archive, duckdb.RetentionConfig{
			RetentionDays: cfg.LogRetention,
			Logger:        logger,
		})
		defer retentionCleaner.Stop()

		snapshots, err := backup.NewManager(archive, backup.Config{
			Enabled:  cfg.SnapshotEnabled,
			Interval: cfg.SnapshotInterval,
			Dir:      cfg.SnapshotDir,
			KeepLast: cfg.SnapshotKeep,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize snapshots: %w", err)
		}
		defer snapshots.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		logger.Info("shutting down")
		if cfg.Headless {
			fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		}
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nForce shutdown.")
		case <-deadline.C:
			fmt.Fprintln(os.Stderr, "Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	// The hub outlives every producer and the settings syncer so their final
	// flushes still land.
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(hubCtx) }()
	defer func() {
		stopHub()
		<-hubDone
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, hub, httpserver.Config{Archive: archiveAPI, Logger: logger})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	if cfg.OTLPEnabled {
		receiver := otlpreceiver.New(hub, otlpreceiver.Config{Addr: cfg.OTLPAddr, Logger: logger})
		g.Go(func() error { return receiver.ListenAndServe(gctx) })
	}

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:     cfg.TCPEnabled,
		TCPAddr:        cfg.TCPAddr,
		Files:          cfg.Files,
		FilesFromStart: cfg.FilesFromStart,
		Logger:         logger,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(gctx)
		if err != nil {
			logger.Error("input plugin failed", zap.String("plugin", plugin.Name()), zap.Error(err))
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(gctx, sources, cfg.MuxBufferSize, logger)
	mux.Start()
	defer mux.Stop()

	processor, err := ingest.NewEnvelopeProcessor(cfg.Processor, hub, "")
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	if mux.HasSources() {
		g.Go(func() error {
			return pumpEnvelopes(gctx, mux.Lines(), processor, defaultIngestFlushInterval)
		})
	}

	syncer := settings.NewSyncer(hub, cfg.SettingsPath, persisted, defaultSettingsInterval, logger)
	g.Go(func() error { return syncer.Run(gctx) })

	logger.Info("debug console started",
		zap.Strings("sources", mux.Names()),
		zap.String("processor", processor.Name()),
		zap.Bool("archive", archive != nil),
		zap.Bool("headless", cfg.Headless))

	var uiErr error
	if cfg.Headless {
		printStartupBanner(cfg, mux.Names(), processor.Name())
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	} else {
		uiErr = runTUI(gctx, hub, cfg)
		cancel()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console exited with error", zap.Error(err))
		if uiErr == nil {
			uiErr = err
		}
	}

	accepted, dropped, rejected := hub.Stats()
	logger.Info("debug console stopped",
		zap.Uint64("accepted", accepted),
		zap.Uint64("dropped", dropped),
		zap.Uint64("rejected", rejected),
		zap.Any("forwarded", mux.Forwarded()))
	return uiErr
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, hub *console.Hub, cfg appConfig) error {
	model := tui.NewConsoleModel(ctx, hub, tui.ConsoleConfig{
		UpdateInterval:     cfg.UpdateInterval,
		ReverseScrollWheel: cfg.ReverseScrollWheel,
	})
	if err := hub.OnDetails(model.DetailsHandler()); err != nil {
		return err
	}
	app := tui.NewApp(tui.NewConsolePage(model))

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal (use -headless)")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func printStartupBanner(cfg appConfig, sources []string, processorName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	status := func(label string, enabled bool, value string) string {
		if !enabled {
			return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render("disabled"))
		}
		return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(value))
	}

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{
		"",
		cyan.Bold(true).Render("    Debug Console"),
		"    " + dim.Render("v"+version),
		"",
		separator,
		"",
		bold.Render("    Inputs"),
		"",
		status("TCP", cfg.TCPEnabled, cfg.TCPAddr),
		status("OTLP gRPC", cfg.OTLPEnabled, cfg.OTLPAddr),
	}
	for _, f := range cfg.Files {
		lines = append(lines, status("Tail", true, shortenPath(f)))
	}
	lines = append(lines,
		fmt.Sprintf("    %s  %-14s %s", check, "Active", dim.Render(strings.Join(sources, ", "))),
		"",
		bold.Render("    Console"),
		"",
		fmt.Sprintf("    %s  %-14s %s", check, "Processor", dim.Render(processorName)),
		fmt.Sprintf("    %s  %-14s %s", check, "Max entries", dim.Render(fmt.Sprint(cfg.MaximumEntries))),
		status("HTTP API", cfg.APIEnabled, cfg.APIAddr),
		status("Archive", cfg.ArchiveEnabled, shortenPath(cfg.DBPath)),
		status("Snapshots", cfg.ArchiveEnabled && cfg.SnapshotEnabled, shortenPath(cfg.SnapshotDir)),
		"",
		bold.Render("    Config"),
		"",
	)
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "Config File", dim.Render("default (no file)")))
	}
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Settings", dim.Render(shortenPath(cfg.SettingsPath))))

	lines = append(lines,
		"",
		separator,
		"",
		"    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"),
		"",
	)

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
