package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"keyrelay-hq/keyrelay/pkg/usage"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/usage.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements usage.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, creating parent directories and the
// schema as needed.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, usage.NewStorageError("sqlite", "open", fmt.Errorf("database path is required"))
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}

	logger := slog.Default().With("component", "usage.storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, usage.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("usage storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return usage.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return usage.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return usage.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return usage.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return usage.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return usage.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists a usage record.
func (s *SQLiteStorage) Store(ctx context.Context, r *usage.Record) error {
	query := `INSERT INTO usage_log (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RequestID, r.Timestamp.UTC().UnixNano(), r.AccountID, r.Model,
		r.InputTokens, r.OutputTokens, r.CacheCreationTokens, r.CacheReadTokens, r.CostUSD,
		r.Method, r.RequestPath, r.StatusCode, r.LatencyMS, r.Outcome, r.Streamed,
	)
	if err != nil {
		return usage.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns records matching filter, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, filter usage.Filter) ([]*usage.Record, error) {
	where, args := buildWhereClause(filter)

	q := "SELECT " + recordColumns + " FROM usage_log"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = usage.DefaultQueryLimit
	}
	q += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*usage.Record{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Summary sums tokens and cost per account.
func (s *SQLiteStorage) Summary(ctx context.Context, accountID string) ([]usage.Summary, error) {
	q := `SELECT account_id, COUNT(*),
		COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_log`
	var args []any
	if accountID != "" {
		q += " WHERE account_id = ?"
		args = append(args, accountID)
	}
	q += " GROUP BY account_id ORDER BY account_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "summary", err)
	}
	defer rows.Close()

	out := []usage.Summary{}
	for rows.Next() {
		var sum usage.Summary
		if err := rows.Scan(&sum.AccountID, &sum.Requests, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD); err != nil {
			return nil, usage.NewStorageError("sqlite", "scan", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "summary", err)
	}
	return out, nil
}

// DeleteBefore removes records with a timestamp strictly before cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM usage_log WHERE timestamp < ?", cutoff.UTC().UnixNano())
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "delete", err)
	}
	if n > 0 {
		s.logger.Debug("deleted usage records", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return usage.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return usage.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("usage storage closed")
	return nil
}

func buildWhereClause(f usage.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Model != "" {
		conds = append(conds, "model = ?")
		args = append(args, f.Model)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Since.UTC().UnixNano())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.Until.UTC().UnixNano())
	}
	return strings.Join(conds, " AND "), args
}

func scanRow(rows *sql.Rows) (*usage.Record, error) {
	var r usage.Record
	var ts int64
	err := rows.Scan(
		&r.ID, &r.RequestID, &ts, &r.AccountID, &r.Model,
		&r.InputTokens, &r.OutputTokens, &r.CacheCreationTokens, &r.CacheReadTokens, &r.CostUSD,
		&r.Method, &r.RequestPath, &r.StatusCode, &r.LatencyMS, &r.Outcome, &r.Streamed,
	)
	if err != nil {
		return nil, err
	}
	r.Timestamp = time.Unix(0, ts).UTC()
	return &r, nil
}
