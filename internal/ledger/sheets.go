package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

// Constants for the Sheets sink configuration
const (
	// DefaultAppendRange is the range rows are appended to in every destination spreadsheet.
	DefaultAppendRange = "Sheet1"
	// DefaultTimestampOffset is the fixed UTC offset used when formatting commit
	// timestamps for the spreadsheet (Kyiv time).
	DefaultTimestampOffset = 3 * time.Hour
)

// Opts holds configuration options for the Sheets sink.
type Opts struct {
	CredentialsFile string
	AccessToken     string
	TimestampOffset time.Duration
}

// Option defines a configuration option for the Sheets sink.
type Option func(*Opts)

// WithCredentialsFile sets the Google service account credentials file path.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) {
		o.CredentialsFile = path
	}
}

// WithAccessToken sets a static OAuth2 access token instead of a credentials file.
func WithAccessToken(token string) Option {
	return func(o *Opts) {
		o.AccessToken = token
	}
}

// WithTimestampOffset sets the fixed UTC offset for spreadsheet timestamps.
func WithTimestampOffset(offset time.Duration) Option {
	return func(o *Opts) {
		o.TimestampOffset = offset
	}
}

// SheetsSink appends completed records to Google Sheets, one spreadsheet per
// request category.
type SheetsSink struct {
	service      *sheets.Service
	destinations Destinations
	zone         *time.Location
}

// NewSheetsSink creates a Sheets sink for the given destination table.
func NewSheetsSink(ctx context.Context, destinations Destinations, opts ...Option) (*SheetsSink, error) {
	cfg := Opts{TimestampOffset: DefaultTimestampOffset}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSheetsSink invoked",
		"credentials_file_set", cfg.CredentialsFile != "",
		"access_token_set", cfg.AccessToken != "",
		"destinations", len(destinations))

	if err := destinations.Validate(); err != nil {
		return nil, err
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case cfg.AccessToken != "":
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
		clientOpts = append(clientOpts, option.WithTokenSource(tokenSource))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, fmt.Errorf("sheets sink requires a credentials file or an access token")
	}

	service, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		slog.Error("Failed to create Sheets service", "error", err)
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	offsetSeconds := int(cfg.TimestampOffset / time.Second)
	return &SheetsSink{
		service:      service,
		destinations: destinations,
		zone:         time.FixedZone("ledger", offsetSeconds),
	}, nil
}

// Append writes one row (name, phone, address, comment, timestamp) to the
// spreadsheet configured for the category.
func (s *SheetsSink) Append(ctx context.Context, category models.Category, record models.Record, submittedAt time.Time) error {
	spreadsheetID, ok := s.destinations[category]
	if !ok {
		slog.Error("SheetsSink Append has no destination for category", "category", category)
		return fmt.Errorf("no destination configured for category %q", category)
	}

	valueRange := &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]interface{}{rowForRecord(record, submittedAt, s.zone)},
	}
	_, err := s.service.Spreadsheets.Values.
		Append(spreadsheetID, DefaultAppendRange, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("SheetsSink Append failed", "error", err, "category", category, "spreadsheet_id", spreadsheetID)
		return fmt.Errorf("failed to append row for category %s: %w", category, err)
	}
	slog.Info("SheetsSink Append succeeded", "category", category, "spreadsheet_id", spreadsheetID)
	return nil
}

// rowForRecord builds the spreadsheet row for one completed record.
func rowForRecord(record models.Record, submittedAt time.Time, zone *time.Location) []interface{} {
	return []interface{}{
		record.FullName,
		record.PhoneNumbers,
		record.Address,
		record.Comment,
		submittedAt.In(zone).Format("2006-01-02 15:04:05 -07:00"),
	}
}
