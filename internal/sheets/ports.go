package sheets

import (
	"context"

	"outlay/internal/core"
)

// MirrorRow is one expense as it appears in the mirror spreadsheet, with
// category ids already resolved to display names.
type MirrorRow struct {
	TrxDate         core.Date
	Description     string
	Amount          float64
	CategoryName    string
	SubcategoryName string
}

// ExpenseMirror appends imported expenses to an external spreadsheet.
type ExpenseMirror interface {
	AppendExpenses(ctx context.Context, rows []MirrorRow) error
}
