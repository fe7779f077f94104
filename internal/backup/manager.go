// Package backup keeps rolling local copies of the history archive.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	filePrefix = "console-"
	fileSuffix = ".duckdb"
)

// Config controls periodic archive snapshots.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Dir      string
	KeepLast int
	Logger   *zap.Logger
}

// Snapshotter is the archive contract the manager needs.
type Snapshotter interface {
	DBPath() string
	SnapshotTo(dstPath string) error
}

// Manager writes a snapshot at startup and then every Interval, keeping the
// newest KeepLast files.
type Manager struct {
	store  Snapshotter
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	last     string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager starts the snapshot loop. It returns nil when snapshots are disabled.
func NewManager(store Snapshotter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, errors.New("backup: nil snapshotter")
	}
	if strings.TrimSpace(store.DBPath()) == "" {
		return nil, errors.New("backup: archive is in-memory")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("backup: snapshot dir is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create snapshot dir: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "backup")),
		done:   make(chan struct{}),
	}

	if _, err := m.RunOnce(); err != nil {
		m.logger.Warn("startup snapshot failed", zap.Error(err))
	}

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(); err != nil {
				m.logger.Warn("periodic snapshot failed", zap.Error(err))
			}
		case <-m.done:
			return
		}
	}
}

// RunOnce writes one snapshot, prunes old ones and returns the new path.
func (m *Manager) RunOnce() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := filePrefix + time.Now().UTC().Format("20060102-150405.000000000") + fileSuffix
	path := filepath.Join(m.cfg.Dir, name)

	if err := m.store.SnapshotTo(path); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	m.last = path

	removed, err := prune(m.cfg.Dir, m.cfg.KeepLast)
	if err != nil {
		return path, fmt.Errorf("prune snapshots: %w", err)
	}
	m.logger.Info("snapshot created", zap.String("path", path), zap.Int("pruned", removed))
	return path, nil
}

// Last returns the path of the newest snapshot written by m.
func (m *Manager) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Stop terminates the loop. It is safe to call on a nil Manager.
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}

// prune removes all but the newest keep snapshots in dir.
func prune(dir string, keep int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return 0, err
	}
	if len(matches) <= keep {
		return 0, nil
	}

	// Names embed a fixed-width UTC timestamp, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	removed := 0
	for _, old := range matches[keep:] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
