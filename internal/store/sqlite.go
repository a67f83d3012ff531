package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/modest/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Operations finish on their own goroutines and write concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertAccount inserts or replaces an account.
// If the account has no ID, a new UUID is generated.
func (s *SQLiteStore) UpsertAccount(
	ctx context.Context,
	acct model.AccountConfig,
) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, name, email, imap_host, imap_port, smtp_host, smtp_port,
			username, tls, enabled, update_interval_sec, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			smtp_host = excluded.smtp_host,
			smtp_port = excluded.smtp_port,
			username = excluded.username,
			tls = excluded.tls,
			enabled = excluded.enabled,
			update_interval_sec = excluded.update_interval_sec,
			updated_at = excluded.updated_at`,
		acct.ID, acct.Name, acct.Email,
		acct.IMAPHost, acct.IMAPPort, acct.SMTPHost, acct.SMTPPort,
		acct.Username, boolToInt(acct.TLS), boolToInt(acct.Enabled),
		acct.UpdateIntervalSec, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", acct.ID, err)
	}

	return nil
}

const accountColumns = `id, name, email, imap_host, imap_port, smtp_host,
	smtp_port, username, tls, enabled, update_interval_sec`

// GetAccounts retrieves all configured accounts ordered by name.
func (s *SQLiteStore) GetAccounts(
	ctx context.Context,
) ([]model.AccountConfig, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.AccountConfig
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}

// GetAccount retrieves a single account by ID.
func (s *SQLiteStore) GetAccount(
	ctx context.Context,
	id string,
) (*model.AccountConfig, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting account %s: %w", id, err)
		}
		return nil, fmt.Errorf("account %s not found", id)
	}

	acct, err := scanAccount(rows)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// DeleteAccount removes an account and everything fetched for it.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("account %s not found", id)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM headers WHERE account_id = ?", id); err != nil {
		return fmt.Errorf("deleting headers of account %s: %w", id, err)
	}

	return tx.Commit()
}

// scanAccount scans an account row from a sqlx.Rows result set.
func scanAccount(rows *sqlx.Rows) (model.AccountConfig, error) {
	var (
		acct    model.AccountConfig
		tls     int
		enabled int
	)

	err := rows.Scan(
		&acct.ID, &acct.Name, &acct.Email,
		&acct.IMAPHost, &acct.IMAPPort, &acct.SMTPHost, &acct.SMTPPort,
		&acct.Username, &tls, &enabled, &acct.UpdateIntervalSec,
	)
	if err != nil {
		return model.AccountConfig{}, fmt.Errorf("scanning account row: %w", err)
	}

	acct.TLS = tls != 0
	acct.Enabled = enabled != 0

	return acct, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
