// Package google mirrors imported expenses to a Google spreadsheet using a
// service account. The mirror is append-only; the spreadsheet is a report,
// not a source of truth.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "outlay/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ExpenseMirror = (*Client)(nil)

// Options configures the mirror client. Exactly one of CredentialsFile or
// CredentialsJSON must be set.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	credentialsJSON := []byte(opts.CredentialsJSON)
	if len(credentialsJSON) == 0 {
		if opts.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials")
		}
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets mirror initialized",
		"spreadsheet_id", opts.SpreadsheetID,
		"sheet_name", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendExpenses appends one row per expense to the mirror sheet:
// date, description, amount, category, subcategory.
func (c *Client) AppendExpenses(ctx context.Context, rows []ports.MirrorRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = []any{
			row.TrxDate.String(),
			row.Description,
			row.Amount,
			row.CategoryName,
			row.SubcategoryName,
		}
	}

	rng := fmt.Sprintf("%s!A:E", c.sheetName)
	vr := &gsheet.ValueRange{Values: values}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Mirrored expenses to spreadsheet",
		"sheet_name", c.sheetName,
		"row_count", len(rows))
	return nil
}
