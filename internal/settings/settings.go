// Package settings persists the user-facing console preferences between runs.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/model"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

// Settings is the persisted preference set.
type Settings struct {
	CollapsedIdenticalLogEntries bool `yaml:"collapsed_identical_log_entries"`
	MaximumNumberOfLogEntries    int  `yaml:"maximum_number_of_log_entries"`
	ShowErrors                   bool `yaml:"show_errors"`
	ShowWarnings                 bool `yaml:"show_warnings"`
	ShowInfo                     bool `yaml:"show_info"`
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		CollapsedIdenticalLogEntries: model.DefaultCollapse,
		MaximumNumberOfLogEntries:    model.DefaultMaximumEntries,
		ShowErrors:                   true,
		ShowWarnings:                 true,
		ShowInfo:                     true,
	}
}

// DefaultPath returns $HOME/.config/debugconsole/settings.yml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "debugconsole", "settings.yml")
}

// Load reads settings from path. A missing file yields base unchanged; keys
// absent from the file keep their value from base.
func Load(path string, base Settings) (Settings, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return base, fmt.Errorf("settings: read %s: %w", path, err)
	}

	s := base
	if err := yaml.Unmarshal(data, &s); err != nil {
		return base, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if s.MaximumNumberOfLogEntries < 1 {
		s.MaximumNumberOfLogEntries = base.MaximumNumberOfLogEntries
	}
	return s, nil
}

// Save writes s to path atomically.
func (s Settings) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("settings: create dir: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}

// Visibility converts the show flags for severity.NewRegistry.
func (s Settings) Visibility() severity.Visibility {
	return severity.Visibility{Errors: s.ShowErrors, Warnings: s.ShowWarnings, Info: s.ShowInfo}
}

// StoreConfig converts the settings into a console store configuration.
func (s Settings) StoreConfig() console.Config {
	return console.Config{
		MaximumEntries: s.MaximumNumberOfLogEntries,
		Collapse:       s.CollapsedIdenticalLogEntries,
	}
}

// Capture reads the persisted fields back out of a live store. It must run
// on the store's writer goroutine.
func Capture(st *console.Store) Settings {
	s := Settings{
		CollapsedIdenticalLogEntries: st.Mode() == console.Collapsed,
		MaximumNumberOfLogEntries:    st.MaximumEntries(),
	}
	for _, c := range st.Registry().Classes() {
		switch c.Name() {
		case severity.NameError:
			s.ShowErrors = c.Visible()
		case severity.NameWarning:
			s.ShowWarnings = c.Visible()
		case severity.NameInfo:
			s.ShowInfo = c.Visible()
		}
	}
	return s
}

// Hub is the part of console.Hub the syncer needs.
type Hub interface {
	Do(ctx context.Context, fn func(*console.Store)) error
}

// Syncer saves settings whenever the live store drifts from what was last
// written, so toggles made from any surface survive a restart.
type Syncer struct {
	hub      Hub
	path     string
	interval time.Duration
	logger   *zap.Logger
	last     Settings
}

// NewSyncer creates a syncer that starts from the already-persisted initial.
func NewSyncer(hub Hub, path string, initial Settings, interval time.Duration, logger *zap.Logger) *Syncer {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		hub:      hub,
		path:     path,
		interval: interval,
		logger:   logger.With(zap.String("component", "settings")),
		last:     initial,
	}
}

// Run polls until ctx is done, then performs one final sync.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// The hub may already be gone; a short-lived context keeps this bounded.
			final, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = s.Sync(final)
			cancel()
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("sync failed", zap.Error(err))
			}
		}
	}
}

// Sync captures the current settings and saves them if they changed.
func (s *Syncer) Sync(ctx context.Context) error {
	var cur Settings
	if err := s.hub.Do(ctx, func(st *console.Store) { cur = Capture(st) }); err != nil {
		return err
	}
	if cur == s.last {
		return nil
	}
	if err := cur.Save(s.path); err != nil {
		return err
	}
	s.logger.Debug("settings saved", zap.String("path", s.path))
	s.last = cur
	return nil
}
