package storage

import (
	"context"
	"errors"

	"outlay/internal/core"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a delete would orphan referencing rows.
	ErrConflict = errors.New("conflict")
)

// ExpenseFilter narrows expense reads. Nil date bounds and an empty category
// list mean unbounded.
type ExpenseFilter struct {
	StartDate   *core.Date
	EndDate     *core.Date
	CategoryIDs []string
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	CreateCategory(ctx context.Context, cat core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, cat core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

type ExpenseStore interface {
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	// SubcategoryTotals returns per-(category, subcategory) totals ordered
	// so rows sharing a category are contiguous, ready for the rollup.
	SubcategoryTotals(ctx context.Context, filter ExpenseFilter) ([]core.SubcategoryTotalRow, error)
	// TimeBuckets returns per-(category, year-month) totals ordered so rows
	// sharing a category are contiguous and chronological within the run.
	TimeBuckets(ctx context.Context, filter ExpenseFilter) ([]core.TimeBucketRow, error)

	ListUncategorized(ctx context.Context) ([]core.Expense, error)
	UpdateExpenseCategory(ctx context.Context, id, categoryID, subcategoryID string) error
}

type ImportStore interface {
	ListImports(ctx context.Context) ([]core.Import, error)
	GetImport(ctx context.Context, id string) (core.Import, error)
	// CreateImportBatch persists the import record and its expenses
	// atomically. A failure leaves nothing behind.
	CreateImportBatch(ctx context.Context, imp core.Import, expenses []core.Expense) (core.Import, error)
	// DeleteImport removes the import record and every expense it produced.
	DeleteImport(ctx context.Context, id string) error
	ListExpensesByImport(ctx context.Context, importID string) ([]core.Expense, error)
}

type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	CreateUser(ctx context.Context, u core.User) (core.User, error)
}

// Store is the full persistence surface the HTTP and worker layers depend on.
type Store interface {
	CategoryStore
	ExpenseStore
	ImportStore
	UserStore
	Close() error
}
