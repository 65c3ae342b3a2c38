package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

func newTestSQLiteStore(t *testing.T, dbPath string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	return s
}

func TestSQLiteStateRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "bot.db"))
	defer s.Close()

	record := models.Record{FullName: "Jane Doe", PhoneNumbers: "555-0100", Address: "12 Main St"}
	next := models.DialogueState{Kind: models.StateCollectingRecord, Category: models.CategoryProvidingUsefulContact, Record: &record}

	if _, err := s.UpdateState("chat-42", func(models.DialogueState) models.DialogueState { return next }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.LoadState("chat-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Kind != next.Kind || loaded.Category != next.Category {
		t.Errorf("loaded state differs: %+v", loaded)
	}
	if loaded.Record == nil || *loaded.Record != record {
		t.Errorf("loaded record differs: %+v", loaded.Record)
	}
}

// Dialogue state must survive a process restart: close the store, reopen it
// on the same file, and find the same state.
func TestSQLiteStateSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bot.db")

	s1 := newTestSQLiteStore(t, dbPath)
	record := models.Record{FullName: "Jane Doe"}
	next := models.DialogueState{Kind: models.StateCollectingRecord, Category: models.CategoryNeedEvacuation, Record: &record}
	if _, err := s1.UpdateState("chat-42", func(models.DialogueState) models.DialogueState { return next }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s2 := newTestSQLiteStore(t, dbPath)
	defer s2.Close()
	loaded, err := s2.LoadState("chat-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Kind != models.StateCollectingRecord || loaded.Category != models.CategoryNeedEvacuation {
		t.Errorf("state did not survive reopen: %+v", loaded)
	}
	if loaded.Record == nil || loaded.Record.FullName != "Jane Doe" {
		t.Errorf("record did not survive reopen: %+v", loaded.Record)
	}
}

func TestSQLiteIdleStateDeletesRow(t *testing.T) {
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "bot.db"))
	defer s.Close()

	if _, err := s.UpdateState("chat-1", func(models.DialogueState) models.DialogueState {
		return models.DialogueState{Kind: models.StateSelectingRequestCategory}
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.UpdateState("chat-1", func(models.DialogueState) models.DialogueState {
		return models.IdleState()
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count, err := s.CountActiveSessions(); err != nil || count != 0 {
		t.Errorf("expected 0 active sessions, got %d (err %v)", count, err)
	}
}

func TestSQLiteUpdateStateSerializesPerKey(t *testing.T) {
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "bot.db"))
	defer s.Close()

	var wg sync.WaitGroup
	for _, text := range []string{"Jane Doe", "555-0100", "12 Main St", "-"} {
		text := text
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateState("chat-1", func(current models.DialogueState) models.DialogueState {
				record := models.Record{}
				if current.Record != nil {
					record = *current.Record
				}
				switch record.PopulatedCount() {
				case 0:
					record.FullName = text
				case 1:
					record.PhoneNumbers = text
				case 2:
					record.Address = text
				case 3:
					record.Comment = text
				}
				return models.DialogueState{Kind: models.StateCollectingRecord, Category: models.CategoryProvidingDriver, Record: &record}
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := s.LoadState("chat-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Record == nil || final.Record.PopulatedCount() != 4 {
		t.Fatalf("a concurrent capture was lost: %+v", final.Record)
	}
}

func TestSQLiteSubmissions(t *testing.T) {
	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "bot.db"))
	defer s.Close()

	record := models.Record{FullName: "Jane Doe", PhoneNumbers: "555-0100", Address: "12 Main St", Comment: "-"}
	submissions := []models.Submission{
		{ID: "sub-1", Category: models.CategoryProvidingDriver, Record: record, SubmittedAt: time.Now().UTC(), SinkStatus: models.SubmissionDelivered},
		{ID: "sub-2", Category: models.CategoryNeedEvacuation, Record: record, SubmittedAt: time.Now().UTC(), SinkStatus: models.SubmissionFailed, SinkError: "append failed"},
	}
	for _, sub := range submissions {
		if err := s.AddSubmission(sub); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	failed, err := s.ListSubmissions(models.SubmissionFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed submission, got %d", len(failed))
	}
	if failed[0].ID != "sub-2" || failed[0].SinkError != "append failed" || failed[0].Record != record {
		t.Errorf("failed submission not stored faithfully: %+v", failed[0])
	}

	if count, _ := s.CountSubmissions(""); count != 2 {
		t.Errorf("expected 2 submissions, got %d", count)
	}
	if count, _ := s.CountSubmissions(models.SubmissionDelivered); count != 1 {
		t.Errorf("expected 1 delivered submission, got %d", count)
	}
}
