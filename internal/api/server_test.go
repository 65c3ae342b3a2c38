package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frol/connect-volunteers-bot/internal/models"
	"github.com/frol/connect-volunteers-bot/internal/store"
)

func seedStore(t *testing.T) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()

	_, err := st.UpdateState("chat-1", func(models.DialogueState) models.DialogueState {
		return models.DialogueState{Kind: models.StateSelectingProvideCategory}
	})
	if err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	record := models.Record{FullName: "Jane Doe", PhoneNumbers: "555-0100", Address: "12 Main St", Comment: "-"}
	submissions := []models.Submission{
		{ID: "sub-1", Category: models.CategoryProvidingDriver, Record: record, SubmittedAt: time.Now(), SinkStatus: models.SubmissionDelivered},
		{ID: "sub-2", Category: models.CategoryNeedEvacuation, Record: record, SubmittedAt: time.Now(), SinkStatus: models.SubmissionFailed, SinkError: "append failed"},
	}
	for _, sub := range submissions {
		if err := st.AddSubmission(sub); err != nil {
			t.Fatalf("failed to seed submission: %v", err)
		}
	}
	return st
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(store.NewInMemoryStore())
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := NewServer(seedStore(t))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var stats statsResponse
	if err := json.NewDecoder(recorder.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", stats.ActiveSessions)
	}
	if stats.SubmissionsTotal != 2 || stats.SubmissionsDelivered != 1 || stats.SubmissionsFailed != 1 {
		t.Errorf("unexpected submission counts: %+v", stats)
	}
}

func TestFailedSubmissionsEndpoint(t *testing.T) {
	server := NewServer(seedStore(t))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/submissions/failed", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var submissions []models.Submission
	if err := json.NewDecoder(recorder.Body).Decode(&submissions); err != nil {
		t.Fatalf("failed to decode submissions: %v", err)
	}
	if len(submissions) != 1 {
		t.Fatalf("expected 1 failed submission, got %d", len(submissions))
	}
	if submissions[0].ID != "sub-2" || submissions[0].Record.FullName != "Jane Doe" {
		t.Errorf("failed submission lacks recovery detail: %+v", submissions[0])
	}
}

func TestFailedSubmissionsEndpointEmptyList(t *testing.T) {
	server := NewServer(store.NewInMemoryStore())
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/submissions/failed", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if body := recorder.Body.String(); body != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}
