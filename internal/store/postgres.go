// Package store provides storage backends for dialogue states.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/frol/connect-volunteers-bot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists dialogue states and submissions in PostgreSQL.
type PostgresStore struct {
	db       *sql.DB
	keyLocks *keyedMutex
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db, keyLocks: newKeyedMutex()}, nil
}

// LoadState retrieves the dialogue state for a session key, defaulting to idle.
func (s *PostgresStore) LoadState(sessionKey string) (models.DialogueState, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state FROM dialogue_states WHERE session_key = $1`, sessionKey).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore LoadState not found, defaulting to idle", "sessionKey", sessionKey)
		return models.IdleState(), nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadState failed", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), fmt.Errorf("failed to load state for %s: %w", sessionKey, err)
	}
	return decodeState(stateJSON, sessionKey)
}

// UpdateState atomically applies fn to the state of the session key. The
// per-key lock serializes concurrent events for the same participant; see the
// SQLite backend for the equivalent discipline.
func (s *PostgresStore) UpdateState(sessionKey string, fn func(models.DialogueState) models.DialogueState) (models.DialogueState, error) {
	unlock := s.keyLocks.Lock(sessionKey)
	defer unlock()

	current, err := s.LoadState(sessionKey)
	if err != nil {
		return models.IdleState(), err
	}
	next := fn(current)

	if next.Kind == models.StateIdle {
		if _, err := s.db.Exec(`DELETE FROM dialogue_states WHERE session_key = $1`, sessionKey); err != nil {
			slog.Error("PostgresStore UpdateState delete failed", "error", err, "sessionKey", sessionKey)
			return models.IdleState(), fmt.Errorf("failed to delete state for %s: %w", sessionKey, err)
		}
		slog.Debug("PostgresStore UpdateState reset to idle", "sessionKey", sessionKey)
		return next, nil
	}

	stateJSON, err := json.Marshal(next)
	if err != nil {
		slog.Error("PostgresStore UpdateState JSON marshal failed", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO dialogue_states (session_key, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_key) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		sessionKey, string(stateJSON), now, now)
	if err != nil {
		slog.Error("PostgresStore UpdateState failed", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), fmt.Errorf("failed to save state for %s: %w", sessionKey, err)
	}
	slog.Debug("PostgresStore UpdateState succeeded", "sessionKey", sessionKey, "kind", next.Kind)
	return next, nil
}

// AddSubmission appends one commit-attempt entry to the audit trail.
func (s *PostgresStore) AddSubmission(sub models.Submission) error {
	_, err := s.db.Exec(`
		INSERT INTO submissions (id, category, full_name, phone_numbers, address, comment, submitted_at, sink_status, sink_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.Category, sub.Record.FullName, sub.Record.PhoneNumbers, sub.Record.Address,
		sub.Record.Comment, sub.SubmittedAt, sub.SinkStatus, nilIfEmpty(sub.SinkError))
	if err != nil {
		slog.Error("PostgresStore AddSubmission failed", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("PostgresStore AddSubmission succeeded", "id", sub.ID, "status", sub.SinkStatus)
	return nil
}

// ListSubmissions returns audit entries with the given sink status, newest first.
func (s *PostgresStore) ListSubmissions(status string) ([]models.Submission, error) {
	query := `SELECT id, category, full_name, phone_numbers, address, comment, submitted_at, sink_status, sink_error
		  FROM submissions`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE sink_status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// CountActiveSessions returns the number of persisted (non-idle) sessions.
func (s *PostgresStore) CountActiveSessions() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dialogue_states`).Scan(&count); err != nil {
		slog.Error("PostgresStore CountActiveSessions failed", "error", err)
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// CountSubmissions returns the number of audit entries with the given status.
func (s *PostgresStore) CountSubmissions(status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE sink_status = $1`, status).Scan(&count)
	}
	if err != nil {
		slog.Error("PostgresStore CountSubmissions failed", "error", err, "status", status)
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
