package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

func fullDestinations() Destinations {
	return Destinations{
		models.CategoryProvidingDriver:        "sheet-driver",
		models.CategoryProvidingUsefulContact: "sheet-contact",
		models.CategoryProvidingCollectingAid: "sheet-collecting",
		models.CategoryNeedEvacuation:         "sheet-evacuation",
		models.CategoryNeedHumanitarianAid:    "sheet-humanitarian",
	}
}

func TestDestinationsValidate(t *testing.T) {
	if err := fullDestinations().Validate(); err != nil {
		t.Fatalf("expected complete table to validate: %v", err)
	}

	missing := fullDestinations()
	delete(missing, models.CategoryNeedEvacuation)
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing category destination")
	}

	unknown := fullDestinations()
	unknown["mystery_category"] = "sheet-x"
	if err := unknown.Validate(); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestLoadDestinations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "destinations.yaml")
	content := `destinations:
  providing_driver: sheet-driver
  providing_useful_contact: sheet-contact
  providing_collecting_aid: sheet-collecting
  need_evacuation: sheet-evacuation
  need_humanitarian_aid: sheet-humanitarian
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	destinations, err := LoadDestinations(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if destinations[models.CategoryNeedEvacuation] != "sheet-evacuation" {
		t.Errorf("wrong destination for evacuation: %q", destinations[models.CategoryNeedEvacuation])
	}
	if len(destinations) != len(models.Categories) {
		t.Errorf("expected %d destinations, got %d", len(models.Categories), len(destinations))
	}
}

func TestLoadDestinationsRejectsIncompleteTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "destinations.yaml")
	content := `destinations:
  providing_driver: sheet-driver
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := LoadDestinations(path); err == nil {
		t.Error("expected incomplete destination table to be rejected")
	}
}

func TestRowForRecord(t *testing.T) {
	record := models.Record{
		FullName:     "Jane Doe",
		PhoneNumbers: "555-0100",
		Address:      "12 Main St",
		Comment:      "-",
	}
	submittedAt := time.Date(2022, 3, 1, 9, 30, 0, 0, time.UTC)
	zone := time.FixedZone("ledger", 3*3600)

	row := rowForRecord(record, submittedAt, zone)
	if len(row) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(row))
	}
	if row[0] != "Jane Doe" || row[1] != "555-0100" || row[2] != "12 Main St" || row[3] != "-" {
		t.Errorf("unexpected row values: %v", row)
	}
	if row[4] != "2022-03-01 12:30:00 +03:00" {
		t.Errorf("timestamp not shifted into the ledger zone: %v", row[4])
	}
}

func TestNewSheetsSinkRequiresCredentials(t *testing.T) {
	_, err := NewSheetsSink(context.Background(), fullDestinations())
	if err == nil {
		t.Error("expected error when neither credentials file nor token is configured")
	}
}
