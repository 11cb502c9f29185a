package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteBackend = "sqlite"

// accountsSchema creates the accounts table. The partial unique index makes a
// second active row a constraint violation, so the invariant also holds for
// writers outside this process.
const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	base_url TEXT NOT NULL,
	api_key TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_single_active ON accounts(is_active) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_accounts_created_at ON accounts(created_at);
`

const selectColumns = `id, name, base_url, api_key, created_at, is_active`

// SQLiteConfig configures the SQLite repository.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteRepository implements Repository on a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database and applies the schema.
func NewSQLiteRepository(cfg SQLiteConfig) (*SQLiteRepository, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, NewStorageError(sqliteBackend, "open", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN so concurrent activations
	// from another process queue on busy_timeout instead of failing mid-transaction.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "open", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(accountsSchema); err != nil {
		db.Close()
		return nil, NewStorageError(sqliteBackend, "create_schema", err)
	}

	logger := slog.Default().With("component", "accounts.sqlite")
	logger.Debug("account store opened", "path", cfg.Path)

	return &SQLiteRepository{
		db:     db,
		path:   cfg.Path,
		logger: logger,
	}, nil
}

// Create implements Repository.
func (s *SQLiteRepository) Create(ctx context.Context, a Account) (Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, NewStorageError(sqliteBackend, "create", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return Account{}, NewStorageError(sqliteBackend, "create", err)
	}
	a.IsActive = count == 0

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, base_url, api_key, created_at, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.BaseURL, a.APIKey, a.CreatedAt.UnixNano(), boolToInt(a.IsActive),
	)
	if err != nil {
		return Account{}, NewStorageError(sqliteBackend, "create", err)
	}

	if err := tx.Commit(); err != nil {
		return Account{}, NewStorageError(sqliteBackend, "create", err)
	}
	return a, nil
}

// List implements Repository.
func (s *SQLiteRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, NewStorageError(sqliteBackend, "list", err)
	}
	defer rows.Close()

	out := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, NewStorageError(sqliteBackend, "scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(sqliteBackend, "list", err)
	}
	return out, nil
}

// Get implements Repository.
func (s *SQLiteRepository) Get(ctx context.Context, id string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, NewStorageError(sqliteBackend, "get", err)
	}
	return a, nil
}

// Activate implements Repository.
func (s *SQLiteRepository) Activate(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError(sqliteBackend, "activate", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_active = 0 WHERE is_active = 1`); err != nil {
		return NewStorageError(sqliteBackend, "activate", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_active = 1 WHERE id = ?`, id); err != nil {
		return NewStorageError(sqliteBackend, "activate", err)
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError(sqliteBackend, "activate", err)
	}
	return nil
}

// Delete implements Repository.
func (s *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return NewStorageError(sqliteBackend, "delete", err)
	}
	return nil
}

// Active implements Repository.
func (s *SQLiteRepository) Active(ctx context.Context) (Account, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE is_active = 1 LIMIT 1`)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, NewStorageError(sqliteBackend, "active", err)
	}
	return a, true, nil
}

// Ping implements Repository.
func (s *SQLiteRepository) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(sqliteBackend, "ping", err)
	}
	return nil
}

// Close implements Repository.
func (s *SQLiteRepository) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError(sqliteBackend, "close", err)
	}
	s.logger.Debug("account store closed", "path", s.path)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		a         Account
		createdAt int64
		active    int64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.BaseURL, &a.APIKey, &createdAt, &active); err != nil {
		return Account{}, err
	}
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.IsActive = active == 1
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
