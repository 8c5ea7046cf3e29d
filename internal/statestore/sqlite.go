package statestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore persists application state across sessions in a single
// app_state table. Used by the CLI so snapshots survive restarts; the
// engine itself only needs the Store interface.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore opens (or creates) the state database at path and runs
// migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// A single writer is plenty for session state.
	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(15 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

// runMigrations runs database migrations using Goose.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run state migrations: %w", err)
	}

	return nil
}

// Get returns the stored document for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	query := `SELECT value FROM app_state WHERE key = ?`
	var value string
	err := s.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// Set upserts the document for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	query := `
		INSERT INTO app_state (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = datetime('now')
	`
	_, err := s.conn.ExecContext(ctx, query, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// Update merges partial into the stored document inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, key string, partial json.RawMessage) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var base json.RawMessage
	var stored string
	err = tx.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// Missing key behaves like Set.
	case err != nil:
		return fmt.Errorf("failed to read state %s: %w", key, err)
	default:
		base = json.RawMessage(stored)
	}

	merged, err := mergeDocuments(base, partial)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO app_state (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = datetime('now')
	`
	if _, err := tx.ExecContext(ctx, query, key, string(merged)); err != nil {
		return fmt.Errorf("failed to update state %s: %w", key, err)
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
