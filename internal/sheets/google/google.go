package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"closeout/internal/log"
	ports "closeout/internal/sheets"
)

// Options configures a Publisher.
type Options struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	Logger             *log.Logger
}

// Publisher writes report tabs into one spreadsheet.
type Publisher struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.ReportPublisher = (*Publisher)(nil)

// New creates a Publisher authenticated with a service account.
func New(ctx context.Context, opts Options) (*Publisher, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	logger := log.OrDefault(opts.Logger, log.ComponentSheets)
	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Publisher {
	return &Publisher{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		logger:        log.OrDefault(logger, log.ComponentSheets),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor file is set.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", log.FieldPath, serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Publish creates the tab when missing, clears it and writes values from A1.
func (p *Publisher) Publish(ctx context.Context, sheet string, values [][]string) (string, error) {
	if p.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := p.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	tab := quoteSheet(sheet)
	if _, err := p.svc.Spreadsheets.Values.Clear(p.spreadsheetID, tab, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
	}

	rows := make([][]any, len(values))
	for i, row := range values {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}
	resp, err := p.svc.Spreadsheets.Values.Update(p.spreadsheetID, tab+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update sheet %s: %w", sheet, err)
	}
	return resp.UpdatedRange, nil
}

func (p *Publisher) ensureSheet(ctx context.Context, sheet string) error {
	ss, err := p.svc.Spreadsheets.Get(p.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet %s: %w", p.spreadsheetID, err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
	}}}
	if _, err := p.svc.Spreadsheets.BatchUpdate(p.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
	}
	p.logger.InfoContext(ctx, "Sheet created", log.FieldSheet, sheet)
	return nil
}

// quoteSheet turns a tab name into an A1 range prefix.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
