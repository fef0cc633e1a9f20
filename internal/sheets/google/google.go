package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"flow/internal/core"
	"flow/internal/log"
	ports "flow/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	cashflowSheet     string
}

// Options configures the exporter. ServiceAccountJSON wins over
// ServiceAccountFile; with neither, GOOGLE_APPLICATION_CREDENTIALS is read.
type Options struct {
	SpreadsheetID      string
	ServiceAccountFile string
	ServiceAccountJSON string
	TransactionsSheet  string
	CashflowSheet      string
}

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets exporter authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	credentials, err := readCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", spreadsheetID,
		"transactions_sheet", sheetName(opts.TransactionsSheet, "Transactions"),
		"cashflow_sheet", sheetName(opts.CashflowSheet, "Cashflow"))

	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		transactionsSheet: sheetName(opts.TransactionsSheet, "Transactions"),
		cashflowSheet:     sheetName(opts.CashflowSheet, "Cashflow"),
	}, nil
}

func readCredentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.ServiceAccountJSON)
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func sheetName(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

// ExportTransactions rewrites the transactions tab.
func (c *Client) ExportTransactions(ctx context.Context, txs []core.Transaction) error {
	return c.replace(ctx, c.transactionsSheet, TransactionRows(txs))
}

// ExportCashflow rewrites the cash-flow tab.
func (c *Client) ExportCashflow(ctx context.Context, points []core.CashflowPoint) error {
	return c.replace(ctx, c.cashflowSheet, CashflowRows(points))
}

func (c *Client) replace(ctx context.Context, sheet string, rows [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:Z", sheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	dataRange := fmt.Sprintf("%s!A1", sheet)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Exported sheet", "sheet", sheet, "rows", len(rows)-1)
	return nil
}

// TransactionRows renders txs with a header row. One-time transactions leave
// the interval and unit cells empty.
func TransactionRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, []any{"ID", "Name", "Amount", "Base date", "Recurrence", "Interval", "Unit"})
	for _, t := range txs {
		var interval, unit any = "", ""
		if !t.Recurrence.IsOneTime() {
			interval, unit = t.Recurrence.Interval, string(t.Recurrence.Unit)
		}
		rows = append(rows, []any{
			t.ID,
			t.Name,
			t.Amount.InexactFloat64(),
			t.BaseDate.String(),
			t.Recurrence.String(),
			interval,
			unit,
		})
	}
	return rows
}

// CashflowRows renders one row per projected day with a header row.
func CashflowRows(points []core.CashflowPoint) [][]any {
	rows := make([][]any, 0, len(points)+1)
	rows = append(rows, []any{"Date", "Balance"})
	for _, p := range points {
		rows = append(rows, []any{p.Date.String(), p.Amount.InexactFloat64()})
	}
	return rows
}
