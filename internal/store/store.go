// Package store provides storage backends for dialogue states and the
// submission audit trail.
//
// It includes an in-memory store for tests and development alongside SQLite
// and PostgreSQL backends. All backends guarantee per-key atomic
// read-modify-write of dialogue states: two concurrent updates for the same
// session key are serialized and neither can observe a stale snapshot.
package store

import (
	"strings"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

// Store is the durable mapping from session keys to dialogue states, plus the
// submission audit trail the operator API reads.
type Store interface {
	// LoadState returns the dialogue state for a session key. A key never seen
	// before yields the idle state, not an error.
	LoadState(sessionKey string) (models.DialogueState, error)

	// UpdateState atomically applies fn to the current state of the session key
	// and persists the result. The returned state is the persisted one. fn must
	// be side-effect free; it may be re-invoked by retrying backends.
	UpdateState(sessionKey string, fn func(models.DialogueState) models.DialogueState) (models.DialogueState, error)

	// AddSubmission appends one commit-attempt entry to the audit trail.
	AddSubmission(s models.Submission) error

	// ListSubmissions returns audit entries with the given sink status, newest
	// first. An empty status returns all entries.
	ListSubmissions(status string) ([]models.Submission, error)

	// CountActiveSessions returns the number of sessions not currently idle.
	CountActiveSessions() (int, error)

	// CountSubmissions returns the number of audit entries with the given sink
	// status. An empty status counts all entries.
	CountSubmissions(status string) (int, error)

	// Close releases the backing resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite3" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}
