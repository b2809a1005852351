package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"outlay/internal/core"
	"outlay/internal/storage"
)

// EventPublisher publishes import lifecycle events. A nil publisher disables
// eventing without failing imports.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, importID string, recordCount int) error
}

// RecordError is one rejected CSV record with its 1-based line number.
type RecordError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// ImportResult reports the outcome of one CSV upload.
type ImportResult struct {
	Import   core.Import   `json:"import"`
	Accepted int           `json:"accepted"`
	Skipped  int           `json:"skipped"`
	Errors   []RecordError `json:"errors"`
}

// ImportService runs the CSV import pipeline: read, normalize each record,
// persist the accepted batch atomically, then announce completion.
type ImportService struct {
	store     storage.Store
	publisher EventPublisher
}

func NewImportService(store storage.Store, publisher EventPublisher) *ImportService {
	return &ImportService{
		store:     store,
		publisher: publisher,
	}
}

// ImportCSV normalizes every record in the upload and persists the valid ones
// as one batch. Invalid records are collected, not fatal; an empty batch is
// still recorded so the upload shows up in import history.
func (s *ImportService) ImportCSV(ctx context.Context, r io.Reader, form core.ImportFormData, fileName string) (ImportResult, error) {
	var result ImportResult

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return result, fmt.Errorf("load categories: %w", err)
	}

	records, err := core.ReadRecords(r)
	if err != nil {
		return result, fmt.Errorf("read upload: %w", err)
	}
	if form.HasHeaderRow && len(records) > 0 {
		records = records[1:]
	}

	expenses := []core.Expense{}
	for i, record := range records {
		candidate, err := core.ParseRecord(record, form, categories)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RecordError{Line: lineNumber(form, i), Error: err.Error()})
			continue
		}
		if candidate == nil {
			continue
		}
		expenses = append(expenses, core.Expense{
			TrxDate:       candidate.TrxDate,
			Description:   candidate.Description,
			Amount:        candidate.Amount,
			CategoryID:    candidate.CategoryID,
			SubcategoryID: candidate.SubcategoryID,
		})
	}

	imp := core.Import{
		ImportDate:  time.Now().UTC(),
		FileName:    fileName,
		Description: form.Description,
		DateFormat:  form.DateFormat,
	}
	imp, err = s.store.CreateImportBatch(ctx, imp, expenses)
	if err != nil {
		return result, fmt.Errorf("persist import batch: %w", err)
	}

	result.Import = imp
	result.Accepted = len(expenses)

	if err := s.publishCompleted(ctx, imp.ID, result.Accepted); err != nil {
		slog.ErrorContext(ctx, "Failed to publish import completed message",
			"import_id", imp.ID, "error", err)
		// The batch is already persisted; eventing failures never fail the
		// upload.
	}

	slog.InfoContext(ctx, "Import completed",
		"import_id", imp.ID,
		"file_name", fileName,
		"accepted", result.Accepted,
		"skipped", result.Skipped)
	return result, nil
}

// DeleteImport removes an import and every expense it produced.
func (s *ImportService) DeleteImport(ctx context.Context, id string) error {
	if err := s.store.DeleteImport(ctx, id); err != nil {
		return fmt.Errorf("delete import: %w", err)
	}
	slog.InfoContext(ctx, "Import deleted", "import_id", id)
	return nil
}

func (s *ImportService) publishCompleted(ctx context.Context, importID string, recordCount int) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping import completed message")
		return nil
	}
	return s.publisher.PublishImportCompleted(ctx, importID, recordCount)
}

// lineNumber maps a record index back to its line in the uploaded file.
func lineNumber(form core.ImportFormData, idx int) int {
	line := idx + 1
	if form.HasHeaderRow {
		line++
	}
	return line
}
