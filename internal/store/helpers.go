package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// decodeState unmarshals a persisted dialogue state, falling back to idle when
// the stored JSON is corrupt so one bad row cannot wedge a session forever.
func decodeState(stateJSON, sessionKey string) (models.DialogueState, error) {
	var state models.DialogueState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		slog.Error("Stored dialogue state is corrupt, resetting to idle", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), nil
	}
	if err := state.Validate(); err != nil {
		slog.Error("Stored dialogue state is invalid, resetting to idle", "error", err, "sessionKey", sessionKey)
		return models.IdleState(), nil
	}
	return state, nil
}

// scanSubmissions drains submission rows from either backend.
func scanSubmissions(rows *sql.Rows) ([]models.Submission, error) {
	var submissions []models.Submission
	for rows.Next() {
		var sub models.Submission
		var sinkError sql.NullString
		if err := rows.Scan(&sub.ID, &sub.Category, &sub.Record.FullName, &sub.Record.PhoneNumbers,
			&sub.Record.Address, &sub.Record.Comment, &sub.SubmittedAt, &sub.SinkStatus, &sinkError); err != nil {
			return nil, fmt.Errorf("scan submission row failed: %w", err)
		}
		sub.SinkError = sinkError.String
		submissions = append(submissions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	return submissions, nil
}
