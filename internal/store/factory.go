package store

import "log/slog"

// New selects a store backend from the configured DSN: PostgreSQL for
// postgres connection strings, SQLite for file paths, and the in-memory
// store when no DSN is configured.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.DSN == "" {
		slog.Warn("No database DSN configured, using in-memory store; dialogue state will not survive a restart")
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("Store factory selected PostgreSQL backend")
		return NewPostgresStore(opts...)
	}
	slog.Debug("Store factory selected SQLite backend", "db_path", cfg.DSN)
	return NewSQLiteStore(opts...)
}
