// Package store provides storage backends for dialogue states.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/frol/connect-volunteers-bot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists dialogue states and submissions in a SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	keyLocks *keyedMutex
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, keyLocks: newKeyedMutex()}, nil
}

// LoadState retrieves the dialogue state for a session key, defaulting to idle.
func (s *SQLiteStore) LoadState(sessionKey string) (models.DialogueState, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state FROM dialogue_states WHERE session_key = ?`, sessionKey).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore LoadState not found, defaulting to idle", "sessionKey", sessionKey)
		return models.IdleState(), nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadState failed", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), fmt.Errorf("failed to load state for %s: %w", sessionKey, err)
	}
	return decodeState(stateJSON, sessionKey)
}

// UpdateState atomically applies fn to the state of the session key. The
// per-key lock is held across the load, the transition, and the write, so two
// concurrent events for the same key can never both read a stale snapshot.
func (s *SQLiteStore) UpdateState(sessionKey string, fn func(models.DialogueState) models.DialogueState) (models.DialogueState, error) {
	unlock := s.keyLocks.Lock(sessionKey)
	defer unlock()

	current, err := s.LoadState(sessionKey)
	if err != nil {
		return models.IdleState(), err
	}
	next := fn(current)

	// Idle is equivalent to absence; drop the row instead of storing it.
	if next.Kind == models.StateIdle {
		if _, err := s.db.Exec(`DELETE FROM dialogue_states WHERE session_key = ?`, sessionKey); err != nil {
			slog.Error("SQLiteStore UpdateState delete failed", "error", err, "sessionKey", sessionKey)
			return models.IdleState(), fmt.Errorf("failed to delete state for %s: %w", sessionKey, err)
		}
		slog.Debug("SQLiteStore UpdateState reset to idle", "sessionKey", sessionKey)
		return next, nil
	}

	stateJSON, err := json.Marshal(next)
	if err != nil {
		slog.Error("SQLiteStore UpdateState JSON marshal failed", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO dialogue_states (session_key, state, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		sessionKey, string(stateJSON), now, now)
	if err != nil {
		slog.Error("SQLiteStore UpdateState failed", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), fmt.Errorf("failed to save state for %s: %w", sessionKey, err)
	}
	slog.Debug("SQLiteStore UpdateState succeeded", "sessionKey", sessionKey, "kind", next.Kind)
	return next, nil
}

// AddSubmission appends one commit-attempt entry to the audit trail.
func (s *SQLiteStore) AddSubmission(sub models.Submission) error {
	_, err := s.db.Exec(`
		INSERT INTO submissions (id, category, full_name, phone_numbers, address, comment, submitted_at, sink_status, sink_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Category, sub.Record.FullName, sub.Record.PhoneNumbers, sub.Record.Address,
		sub.Record.Comment, sub.SubmittedAt, sub.SinkStatus, nilIfEmpty(sub.SinkError))
	if err != nil {
		slog.Error("SQLiteStore AddSubmission failed", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("SQLiteStore AddSubmission succeeded", "id", sub.ID, "status", sub.SinkStatus)
	return nil
}

// ListSubmissions returns audit entries with the given sink status, newest first.
func (s *SQLiteStore) ListSubmissions(status string) ([]models.Submission, error) {
	query := `SELECT id, category, full_name, phone_numbers, address, comment, submitted_at, sink_status, sink_error
		  FROM submissions`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE sink_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// CountActiveSessions returns the number of persisted (non-idle) sessions.
func (s *SQLiteStore) CountActiveSessions() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dialogue_states`).Scan(&count); err != nil {
		slog.Error("SQLiteStore CountActiveSessions failed", "error", err)
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// CountSubmissions returns the number of audit entries with the given status.
func (s *SQLiteStore) CountSubmissions(status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE sink_status = ?`, status).Scan(&count)
	}
	if err != nil {
		slog.Error("SQLiteStore CountSubmissions failed", "error", err, "status", status)
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
