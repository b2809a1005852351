package worker

import (
	"context"
	"fmt"
	"log/slog"

	"outlay/internal/amqp"
	"outlay/internal/core"
	"outlay/internal/sheets"
	"outlay/internal/storage"
)

// ImportWorker reacts to import completion events. It re-applies the current
// match rules to every uncategorized expense, so rules added after an import
// still pick up old rows, and optionally mirrors the imported batch to a
// spreadsheet.
type ImportWorker struct {
	store  storage.Store
	mirror sheets.ExpenseMirror
}

func NewImportWorker(store storage.Store, mirror sheets.ExpenseMirror) *ImportWorker {
	return &ImportWorker{
		store:  store,
		mirror: mirror,
	}
}

// HandleImportCompleted processes a single import completion message.
func (w *ImportWorker) HandleImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error {
	slog.InfoContext(ctx, "Processing import completed message",
		"import_id", msg.ImportID,
		"record_count", msg.RecordCount)

	matched, err := w.RematchUncategorized(ctx)
	if err != nil {
		return fmt.Errorf("rematch uncategorized: %w", err)
	}
	if matched > 0 {
		slog.InfoContext(ctx, "Categorized expenses via rematch", "count", matched)
	}

	if err := w.mirrorImport(ctx, msg.ImportID); err != nil {
		// The mirror is a convenience copy. Failing here would requeue the
		// message and repeat the append, so log and move on.
		slog.ErrorContext(ctx, "Failed to mirror import",
			"import_id", msg.ImportID, "error", err)
	}

	return nil
}

// RematchUncategorized runs the current match rules over every expense
// without a category and returns how many were categorized.
func (w *ImportWorker) RematchUncategorized(ctx context.Context) (int, error) {
	categories, err := w.store.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}

	expenses, err := w.store.ListUncategorized(ctx)
	if err != nil {
		return 0, fmt.Errorf("load uncategorized expenses: %w", err)
	}

	matched := 0
	for _, e := range expenses {
		catID, subID, ok := core.MatchCategory(e.Description, categories)
		if !ok {
			continue
		}
		if err := w.store.UpdateExpenseCategory(ctx, e.ID, catID, subID); err != nil {
			slog.ErrorContext(ctx, "Failed to update expense category",
				"expense_id", e.ID, "error", err)
			continue
		}
		matched++
	}
	return matched, nil
}

func (w *ImportWorker) mirrorImport(ctx context.Context, importID string) error {
	if w.mirror == nil {
		return nil
	}

	expenses, err := w.store.ListExpensesByImport(ctx, importID)
	if err != nil {
		return fmt.Errorf("load import batch: %w", err)
	}
	if len(expenses) == 0 {
		return nil
	}

	categories, err := w.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	byID := make(map[string]core.Category, len(categories))
	for _, cat := range categories {
		byID[cat.ID] = cat
	}

	rows := make([]sheets.MirrorRow, len(expenses))
	for i, e := range expenses {
		row := sheets.MirrorRow{
			TrxDate:     e.TrxDate,
			Description: e.Description,
			Amount:      e.Amount,
		}
		if cat, ok := byID[e.CategoryID]; ok {
			row.CategoryName = cat.Name
			if sub, ok := cat.Subcategory(e.SubcategoryID); ok {
				row.SubcategoryName = sub.Name
			}
		}
		rows[i] = row
	}

	return w.mirror.AppendExpenses(ctx, rows)
}
