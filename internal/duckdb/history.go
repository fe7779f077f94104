package duckdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

// FingerprintCount aggregates archived occurrences of one fingerprint.
type FingerprintCount struct {
	Fingerprint string    `json:"fingerprint"`
	Label       string    `json:"label"`
	Severity    string    `json:"severity"`
	Count       int64     `json:"count"`
	LastSeen    time.Time `json:"last_seen"`
}

func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// InsertHistoryBatch appends rows in a single transaction. If the batch
// fails, rows are retried one by one so a single bad row does not lose the
// rest.
func (s *Store) InsertHistoryBatch(rows []model.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertBatchTx(ctx, rows)
	if err == nil {
		return nil
	}
	s.logger.Warn("batch insert failed, retrying row by row", zap.Int("rows", len(rows)), zap.Error(err))

	var failed int
	for _, r := range rows {
		if rerr := s.insertBatchTx(ctx, []model.HistoryRow{r}); rerr != nil {
			failed++
			s.logger.Error("dropping history row",
				zap.String("severity", r.Severity),
				zap.String("label", truncate(r.Label, 80)),
				zap.Error(rerr))
		}
	}
	if failed > 0 {
		s.logger.Warn("batch partially failed", zap.Int("dropped", failed), zap.Int("rows", len(rows)))
	}
	return nil
}

func (s *Store) insertBatchTx(ctx context.Context, rows []model.HistoryRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO log_history (ts, label, callstack, severity, kind, fingerprint, source) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			ts, r.Label, r.Callstack, r.Severity, r.Kind.String(),
			formatFingerprint(r.Fingerprint), r.Source,
		); err != nil {
			return fmt.Errorf("history insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RecentHistory returns up to limit of the most recent rows, oldest first,
// for replaying into a fresh console.
func (s *Store) RecentHistory(limit int) ([]model.HistoryRow, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, label, callstack, severity, kind, fingerprint, source FROM (
			SELECT * FROM log_history ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("duckdb: recent history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRow
	for rows.Next() {
		var (
			r           model.HistoryRow
			kind, fpHex string
		)
		if err := rows.Scan(&r.Timestamp, &r.Label, &r.Callstack, &r.Severity, &kind, &fpHex, &r.Source); err != nil {
			s.logger.Warn("scan error", zap.String("query", "RecentHistory"), zap.Error(err))
			continue
		}
		r.Kind, _ = model.ParseLogKind(kind)
		r.Fingerprint, _ = strconv.ParseUint(fpHex, 16, 64)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeverityTotals returns archived occurrence counts per severity bucket.
func (s *Store) SeverityTotals() (map[string]int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM log_history GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: severity totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			s.logger.Warn("scan error", zap.String("query", "SeverityTotals"), zap.Error(err))
			continue
		}
		out[name] = n
	}
	return out, rows.Err()
}

// TopFingerprints returns the most frequent archived messages.
func (s *Store) TopFingerprints(limit int) ([]FingerprintCount, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, any_value(label), any_value(severity), COUNT(*) AS n, MAX(ts)
		FROM log_history
		GROUP BY fingerprint
		ORDER BY n DESC, MAX(ts) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("duckdb: top fingerprints: %w", err)
	}
	defer rows.Close()

	var out []FingerprintCount
	for rows.Next() {
		var fc FingerprintCount
		if err := rows.Scan(&fc.Fingerprint, &fc.Label, &fc.Severity, &fc.Count, &fc.LastSeen); err != nil {
			s.logger.Warn("scan error", zap.String("query", "TopFingerprints"), zap.Error(err))
			continue
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// TotalHistoryCount returns the number of archived rows.
func (s *Store) TotalHistoryCount() (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: count history: %w", err)
	}
	return n, nil
}

// DeleteBefore removes rows older than cutoff and returns how many were deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM log_history WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("duckdb: delete before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}

// ClearHistory removes every archived row.
func (s *Store) ClearHistory() error {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM log_history`); err != nil {
		return fmt.Errorf("duckdb: clear history: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
