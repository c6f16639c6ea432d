// Package sheets appends monthly summaries to a shared Google
// spreadsheet, so household members without access to the service still
// see the numbers.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"registro/internal/analytics"
)

type SummaryPublisher struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetName     string
}

// NewFromEnv builds a publisher from GOOGLE_SPREADSHEET_ID,
// GOOGLE_SHEET_NAME and GOOGLE_CREDENTIALS_JSON (service account key).
func NewFromEnv(ctx context.Context) (*SummaryPublisher, error) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		return nil, fmt.Errorf("GOOGLE_SPREADSHEET_ID not set")
	}
	sheetName := os.Getenv("GOOGLE_SHEET_NAME")
	if sheetName == "" {
		sheetName = "Riepilogo"
	}
	creds := os.Getenv("GOOGLE_CREDENTIALS_JSON")
	if creds == "" {
		return nil, fmt.Errorf("GOOGLE_CREDENTIALS_JSON not set")
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(creds)),
		option.WithScopes(gsheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SummaryPublisher{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendSummary appends one row with the ledger label, month, totals and
// net balance.
func (p *SummaryPublisher) AppendSummary(ctx context.Context, ledgerLabel string, s analytics.MonthSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	row := []interface{}{
		time.Now().Format(time.RFC3339),
		ledgerLabel,
		s.Month.String(),
		strconv.FormatInt(s.TotalIncome, 10),
		strconv.FormatInt(s.TotalExpense, 10),
		strconv.FormatInt(s.NetBalance, 10),
	}

	vr := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := p.svc.Spreadsheets.Values.
		Append(p.spreadsheetID, p.sheetName+"!A:F", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append summary row: %w", err)
	}

	slog.InfoContext(ctx, "Summary published to spreadsheet",
		"ledger", ledgerLabel,
		"month", s.Month.String(),
		"net_balance", s.NetBalance)
	return nil
}
