package duckdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInMemoryStore indicates the archive has no backing file to snapshot.
var ErrInMemoryStore = errors.New("duckdb: in-memory store cannot be snapshotted")

const snapshotAlias = "console_snapshot"

// DBPath returns the configured path. Empty means in-memory.
func (s *Store) DBPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dbPath
}

// SnapshotTo exports the archive into a fresh database file at dstPath.
// The copy is made by DuckDB itself through an attached database, so the
// snapshot is consistent with the last committed insert batch. Inserts wait
// while the export runs.
func (s *Store) SnapshotTo(dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dbPath == "" {
		return ErrInMemoryStore
	}

	tmp := dstPath + ".tmp"
	removeSnapshotFiles(tmp)
	rows, err := s.exportArchive(ctx, tmp)
	if err != nil {
		removeSnapshotFiles(tmp)
		return err
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		removeSnapshotFiles(tmp)
		return fmt.Errorf("duckdb: publish snapshot: %w", err)
	}

	s.logger.Info("snapshot written",
		zap.String("path", dstPath),
		zap.Int64("history_rows", rows),
		zap.Duration("took", time.Since(start)))
	return nil
}

// exportArchive copies every table of the open archive into a new database
// at path and returns the number of history rows it holds.
func (s *Store) exportArchive(ctx context.Context, path string) (int64, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("duckdb: snapshot conn: %w", err)
	}
	defer conn.Close()

	var source string
	if err := conn.QueryRowContext(ctx, "SELECT current_database()").Scan(&source); err != nil {
		return 0, fmt.Errorf("duckdb: resolve archive catalog: %w", err)
	}

	attach := fmt.Sprintf("ATTACH %s AS %s", sqlString(path), snapshotAlias)
	if _, err := conn.ExecContext(ctx, attach); err != nil {
		return 0, fmt.Errorf("duckdb: attach snapshot: %w", err)
	}
	attached := true
	defer func() {
		if attached {
			_, _ = conn.ExecContext(context.Background(), "DETACH "+snapshotAlias)
		}
	}()

	copyStmt := fmt.Sprintf("COPY FROM DATABASE %s TO %s", sqlIdent(source), snapshotAlias)
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		return 0, fmt.Errorf("duckdb: copy archive: %w", err)
	}

	var rows int64
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM "+snapshotAlias+".log_history").Scan(&rows); err != nil {
		return 0, fmt.Errorf("duckdb: verify snapshot: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "CHECKPOINT "+snapshotAlias); err != nil {
		return 0, fmt.Errorf("duckdb: checkpoint snapshot: %w", err)
	}
	attached = false
	if _, err := conn.ExecContext(ctx, "DETACH "+snapshotAlias); err != nil {
		return 0, fmt.Errorf("duckdb: detach snapshot: %w", err)
	}
	return rows, nil
}

func removeSnapshotFiles(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + ".wal")
}

func sqlString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func sqlIdent(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
