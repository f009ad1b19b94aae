package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Connect opens (and creates, if missing) the SQLite database at path.
// Foreign keys are enforced and writers wait up to 5s on a locked database so
// concurrent transactions serialize instead of failing with SQLITE_BUSY.
func Connect(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; more connections only add lock churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// RunMigrations applies the schema. Statements are idempotent so the runner
// can execute at every startup.
func (s *Store) RunMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			state TEXT NOT NULL,
			session_id TEXT,
			session_state TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_session_id ON accounts(session_id)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			product TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			scopes TEXT NOT NULL DEFAULT '',
			token_type TEXT NOT NULL DEFAULT '',
			token_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE TABLE IF NOT EXISTS session_details (
			session_id TEXT PRIMARY KEY,
			initial_event_id TEXT NOT NULL DEFAULT '',
			required_account_type TEXT NOT NULL DEFAULT '',
			second_factor_enabled INTEGER NOT NULL DEFAULT 0,
			two_pass_mode_enabled INTEGER NOT NULL DEFAULT 0,
			password TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS human_verification_details (
			session_id TEXT PRIMARY KEY,
			verification_methods TEXT NOT NULL DEFAULT '',
			captcha_verification_token TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS account_metadata (
			user_id TEXT NOT NULL,
			product TEXT NOT NULL,
			primary_at_ms INTEGER NOT NULL,
			PRIMARY KEY (user_id, product)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
