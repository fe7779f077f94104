package duckdb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxQueryRows caps the rows ExecuteQuery returns.
const MaxQueryRows = 1000

var (
	ErrSemicolon    = errors.New("query must not contain semicolons")
	ErrNotReadQuery = errors.New("only SELECT/WITH queries are allowed")
)

// dangerousKeywordPattern matches write or admin SQL keywords at word
// boundaries so "RESET" does not trip on "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// MinuteCounts is one per-minute severity breakdown of archived history.
type MinuteCounts struct {
	Minute  time.Time `json:"minute"`
	Error   int64     `json:"error"`
	Warning int64     `json:"warning"`
	Info    int64     `json:"info"`
	Total   int64     `json:"total"`
}

// SeverityCountsByMinute returns per-minute severity breakdowns for a time window.
func (s *Store) SeverityCountsByMinute(window time.Duration) ([]MinuteCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	cutoff := time.Now().Add(-window)

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('minute', ts) AS minute,
			SUM(CASE WHEN severity='Error' THEN 1 ELSE 0 END) AS error,
			SUM(CASE WHEN severity='Warning' THEN 1 ELSE 0 END) AS warning,
			SUM(CASE WHEN severity='Info' THEN 1 ELSE 0 END) AS info,
			COUNT(*) AS total
		FROM log_history
		WHERE ts >= ?
		GROUP BY minute ORDER BY minute`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("duckdb: counts by minute: %w", err)
	}
	defer rows.Close()

	var results []MinuteCounts
	for rows.Next() {
		var mc MinuteCounts
		if err := rows.Scan(&mc.Minute, &mc.Error, &mc.Warning, &mc.Info, &mc.Total); err != nil {
			s.logger.Warn("scan error", zap.String("query", "SeverityCountsByMinute"), zap.Error(err))
			continue
		}
		results = append(results, mc)
	}
	return results, rows.Err()
}

// ExecuteQuery runs a read-only SQL query and returns results as maps.
// Only SELECT/WITH read queries are allowed; DDL/DML is rejected.
func (s *Store) ExecuteQuery(query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(query)

	if strings.Contains(trimmed, ";") {
		return nil, ErrSemicolon
	}

	// Keywords hidden in comments still count.
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, ErrNotReadQuery
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() && len(results) < MaxQueryRows {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			s.logger.Warn("scan error", zap.String("query", "ExecuteQuery"), zap.Error(err))
			continue
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// SchemaDescription returns a human-readable schema description.
func SchemaDescription() string {
	return `Table 'log_history': seq (BIGINT), ts (TIMESTAMP), label (VARCHAR), ` +
		`callstack (VARCHAR), severity (VARCHAR: Error/Warning/Info), ` +
		`kind (VARCHAR: log/warning/error/assert/exception), ` +
		`fingerprint (VARCHAR, 16 hex digits), source (VARCHAR). ` +
		`Table 'console_sessions': started_at (TIMESTAMP), maximum_entries (INTEGER), collapsed (BOOLEAN).`
}

// TableRowCounts returns the row count for each known table.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	allowedTables := []string{"log_history", "console_sessions"}
	counts := make(map[string]int64, len(allowedTables))

	for _, table := range allowedTables {
		var count int64
		// Table names are constants, never user input.
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			continue
		}
		counts[table] = count
	}
	return counts, nil
}
