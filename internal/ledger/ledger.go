// Package ledger appends completed intake records to their external
// append-only destinations.
//
// Each request category maps to exactly one destination (a spreadsheet). The
// destination table is configuration loaded at startup; the sink itself is
// fire-and-forget from the state machine's perspective, and failures are
// recorded in the submission audit trail instead of reopening the session.
package ledger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frol/connect-volunteers-bot/internal/models"
	"gopkg.in/yaml.v3"
)

// Sink is the append-only destination for completed records. Append is
// invoked at most once per completed record, with the commit timestamp
// assigned by the session driver.
type Sink interface {
	Append(ctx context.Context, category models.Category, record models.Record, submittedAt time.Time) error
}

// Destinations maps each request category to its spreadsheet ID.
// The table is fixed for the lifetime of the process.
type Destinations map[models.Category]string

// Validate checks that every supported category has a destination and that no
// unknown categories are configured.
func (d Destinations) Validate() error {
	for _, category := range models.Categories {
		if d[category] == "" {
			return fmt.Errorf("no destination configured for category %q", category)
		}
	}
	for category := range d {
		if !models.IsValidCategory(category) {
			return fmt.Errorf("%w: %q", models.ErrInvalidCategory, category)
		}
	}
	return nil
}

// destinationsFile is the YAML shape of the destination configuration file.
type destinationsFile struct {
	Destinations map[string]string `yaml:"destinations"`
}

// LoadDestinations reads the destination table from a YAML file of the form:
//
//	destinations:
//	  providing_driver: <spreadsheet id>
//	  ...
func LoadDestinations(path string) (Destinations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read destinations file %s: %w", path, err)
	}
	var file destinationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse destinations file %s: %w", path, err)
	}
	destinations := make(Destinations, len(file.Destinations))
	for category, id := range file.Destinations {
		destinations[models.Category(category)] = id
	}
	if err := destinations.Validate(); err != nil {
		return nil, err
	}
	return destinations, nil
}
