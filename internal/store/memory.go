package store

import (
	"log/slog"
	"sync"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

// InMemoryStore keeps dialogue states and submissions in process memory.
// It is used by tests and when no database DSN is configured; state does not
// survive a restart.
type InMemoryStore struct {
	mu          sync.RWMutex
	states      map[string]models.DialogueState
	submissions []models.Submission
	keyLocks    *keyedMutex
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:   make(map[string]models.DialogueState),
		keyLocks: newKeyedMutex(),
	}
}

// LoadState returns the stored state, or the idle state for unknown keys.
func (s *InMemoryStore) LoadState(sessionKey string) (models.DialogueState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionKey]
	if !ok {
		return models.IdleState(), nil
	}
	return state, nil
}

// UpdateState atomically applies fn to the state of the session key.
func (s *InMemoryStore) UpdateState(sessionKey string, fn func(models.DialogueState) models.DialogueState) (models.DialogueState, error) {
	unlock := s.keyLocks.Lock(sessionKey)
	defer unlock()

	current, err := s.LoadState(sessionKey)
	if err != nil {
		return models.IdleState(), err
	}
	next := fn(current)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Idle is equivalent to absence, so idle sessions without a partial record
	// are dropped rather than stored.
	if next.Kind == models.StateIdle {
		delete(s.states, sessionKey)
	} else {
		s.states[sessionKey] = next
	}
	return next, nil
}

// AddSubmission appends one audit entry.
func (s *InMemoryStore) AddSubmission(sub models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
	slog.Debug("InMemoryStore AddSubmission succeeded", "id", sub.ID, "status", sub.SinkStatus)
	return nil
}

// ListSubmissions returns audit entries with the given status, newest first.
func (s *InMemoryStore) ListSubmissions(status string) ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Submission
	for i := len(s.submissions) - 1; i >= 0; i-- {
		if status == "" || s.submissions[i].SinkStatus == status {
			out = append(out, s.submissions[i])
		}
	}
	return out, nil
}

// CountActiveSessions returns the number of non-idle sessions.
func (s *InMemoryStore) CountActiveSessions() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states), nil
}

// CountSubmissions returns the number of audit entries with the given status.
func (s *InMemoryStore) CountSubmissions(status string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status == "" {
		return len(s.submissions), nil
	}
	count := 0
	for _, sub := range s.submissions {
		if sub.SinkStatus == status {
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
