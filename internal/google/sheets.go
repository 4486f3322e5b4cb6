package google

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"presence/internal/report"
	"presence/internal/stats"
)

// valuesAPI is the part of the Sheets values API the publisher uses.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

type sheetsValues struct {
	srv *sheets.Service
}

func (v *sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.srv.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (v *sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := v.srv.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// SheetsPublisher mirrors the monthly ranking into a Google Sheets tab.
type SheetsPublisher struct {
	values        valuesAPI
	spreadsheetID string
	sheet         string
	logger        zerolog.Logger
}

// NewSheetsPublisher authenticates with a service account credentials file.
func NewSheetsPublisher(ctx context.Context, credentialsFile, spreadsheetID, sheet string, logger *zerolog.Logger) (*SheetsPublisher, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := googleauth.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newSheetsPublisher(&sheetsValues{srv: srv}, spreadsheetID, sheet, logger), nil
}

func newSheetsPublisher(values valuesAPI, spreadsheetID, sheet string, logger *zerolog.Logger) *SheetsPublisher {
	return &SheetsPublisher{
		values:        values,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.With().Str("component", "google_sheets").Logger(),
	}
}

func (p *SheetsPublisher) Name() string {
	return "google_sheets"
}

// Publish replaces the content of the tab with the ranking of doc.
func (p *SheetsPublisher) Publish(ctx context.Context, doc report.Document) error {
	rows := rankingRows(doc, time.Now())

	if err := p.values.Clear(ctx, p.spreadsheetID, p.sheet); err != nil {
		return fmt.Errorf("clear %s: %w", p.sheet, err)
	}
	if err := p.values.Update(ctx, p.spreadsheetID, p.sheet+"!A1", rows); err != nil {
		return fmt.Errorf("update %s: %w", p.sheet, err)
	}

	p.logger.Info().
		Str("month", doc.Report.Month.String()).
		Int("rows", len(rows)).
		Msg("ranking published to google sheets")
	return nil
}

func rankingRows(doc report.Document, updatedAt time.Time) [][]interface{} {
	rows := make([][]interface{}, 0, len(doc.Report.Ranking)+2)
	rows = append(rows,
		[]interface{}{"Month", doc.Report.Month.String(), "Updated", updatedAt.Format("2006-01-02 15:04:05")},
		[]interface{}{"Place", "User ID", "Name", "Mean presence", "Avatar"},
	)
	for i, place := range doc.Report.Ranking {
		rows = append(rows, rankingRowValues(i+1, place))
	}
	return rows
}

func rankingRowValues(place int, r stats.Ranking) []interface{} {
	return []interface{}{
		place,
		r.UserID,
		r.Name,
		stats.FormatSeconds(r.Mean),
		r.Avatar,
	}
}
