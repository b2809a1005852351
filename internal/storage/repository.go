package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"outlay/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Store on a single sqlite database file.
// Subcategories are stored as a JSON document on the category row so a
// category reads and writes as one unit.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- categories ---

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, subcategories FROM categories ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, subcategories FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return cat, err
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	fillSubcategoryIDs(&cat)

	doc, err := marshalSubcategories(cat.Subcategories)
	if err != nil {
		return core.Category{}, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, subcategories) VALUES (?, ?, ?)`,
		cat.ID, cat.Name, doc)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("category %q: %w", cat.Name, core.ErrDuplicateName)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", cat.ID, "name", cat.Name)
	return cat, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	fillSubcategoryIDs(&cat)

	doc, err := marshalSubcategories(cat.Subcategories)
	if err != nil {
		return core.Category{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, subcategories = ? WHERE id = ?`,
		cat.Name, doc, cat.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("category %q: %w", cat.Name, core.ErrDuplicateName)
		}
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, fmt.Errorf("category %s: %w", cat.ID, ErrNotFound)
	}
	return cat, nil
}

// DeleteCategory refuses to delete a category that expenses still reference.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE category_id = ?`, id).Scan(&count)
	if err != nil {
		return fmt.Errorf("count category references: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("category %s has %d expenses: %w", id, count, ErrConflict)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- expenses ---

const expenseColumns = `id, trx_date, description, amount, category_id, subcategory_id, import_id`

func (r *SQLiteRepository) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]core.Expense, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where + ` ORDER BY trx_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return e, err
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TrxDate.String(), e.Description, e.Amount, e.CategoryID, e.SubcategoryID, e.ImportID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET trx_date = ?, description = ?, amount = ?, category_id = ?, subcategory_id = ? WHERE id = ?`,
		e.TrxDate.String(), e.Description, e.Amount, e.CategoryID, e.SubcategoryID, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, ErrNotFound)
	}
	return e, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SubcategoryTotals(ctx context.Context, filter ExpenseFilter) ([]core.SubcategoryTotalRow, error) {
	where, args := filterClause(filter)
	query := `SELECT category_id, subcategory_id, SUM(amount) FROM expenses` + where +
		` GROUP BY category_id, subcategory_id ORDER BY category_id, subcategory_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("subcategory totals: %w", err)
	}
	defer rows.Close()

	totals := []core.SubcategoryTotalRow{}
	for rows.Next() {
		var row core.SubcategoryTotalRow
		if err := rows.Scan(&row.CategoryID, &row.SubcategoryID, &row.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan total row: %w", err)
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.resolveTotalNames(ctx, totals); err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *SQLiteRepository) TimeBuckets(ctx context.Context, filter ExpenseFilter) ([]core.TimeBucketRow, error) {
	where, args := filterClause(filter)
	query := `SELECT category_id,
        CAST(strftime('%Y', trx_date) AS INTEGER),
        CAST(strftime('%m', trx_date) AS INTEGER),
        SUM(amount)
        FROM expenses` + where + `
        GROUP BY category_id, strftime('%Y', trx_date), strftime('%m', trx_date)
        ORDER BY category_id, strftime('%Y', trx_date), strftime('%m', trx_date)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("time buckets: %w", err)
	}
	defer rows.Close()

	buckets := []core.TimeBucketRow{}
	for rows.Next() {
		var row core.TimeBucketRow
		if err := rows.Scan(&row.CategoryID, &row.TrxYear, &row.TrxMonth, &row.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan bucket row: %w", err)
		}
		buckets = append(buckets, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	names, err := r.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	for i := range buckets {
		buckets[i].CategoryName = names[buckets[i].CategoryID]
	}
	return buckets, nil
}

func (r *SQLiteRepository) ListUncategorized(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE category_id = '' ORDER BY trx_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list uncategorized: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

func (r *SQLiteRepository) UpdateExpenseCategory(ctx context.Context, id, categoryID, subcategoryID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ?, subcategory_id = ? WHERE id = ?`,
		categoryID, subcategoryID, id)
	if err != nil {
		return fmt.Errorf("update expense category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- imports ---

func (r *SQLiteRepository) ListImports(ctx context.Context) ([]core.Import, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, import_date, file_name, description, record_count, date_format
         FROM imports ORDER BY import_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	imports := []core.Import{}
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

func (r *SQLiteRepository) GetImport(ctx context.Context, id string) (core.Import, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, import_date, file_name, description, record_count, date_format
         FROM imports WHERE id = ?`, id)
	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Import{}, fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	return imp, err
}

func (r *SQLiteRepository) CreateImportBatch(ctx context.Context, imp core.Import, expenses []core.Expense) (core.Import, error) {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	imp.RecordCount = len(expenses)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Import{}, fmt.Errorf("begin import batch: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO imports (id, import_date, file_name, description, record_count, date_format)
         VALUES (?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.ImportDate.UTC().Format(time.RFC3339), imp.FileName, imp.Description, imp.RecordCount, imp.DateFormat)
	if err != nil {
		return core.Import{}, fmt.Errorf("create import: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return core.Import{}, fmt.Errorf("prepare expense insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range expenses {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		_, err = stmt.ExecContext(ctx,
			e.ID, e.TrxDate.String(), e.Description, e.Amount, e.CategoryID, e.SubcategoryID, imp.ID)
		if err != nil {
			return core.Import{}, fmt.Errorf("insert imported expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Import{}, fmt.Errorf("commit import batch: %w", err)
	}

	slog.InfoContext(ctx, "Import batch saved",
		"import_id", imp.ID,
		"file_name", imp.FileName,
		"record_count", imp.RecordCount)
	return imp, nil
}

func (r *SQLiteRepository) DeleteImport(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE import_id = ?`, id); err != nil {
		return fmt.Errorf("delete imported expenses: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete import: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListExpensesByImport(ctx context.Context, importID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE import_id = ? ORDER BY trx_date, id`, importID)
	if err != nil {
		return nil, fmt.Errorf("list expenses by import: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// --- users ---

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE username = ?`, username).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username) VALUES (?, ?)`, u.ID, u.Username)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrDuplicateName)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var cat core.Category
	var doc string
	if err := row.Scan(&cat.ID, &cat.Name, &doc); err != nil {
		return core.Category{}, err
	}
	if err := json.Unmarshal([]byte(doc), &cat.Subcategories); err != nil {
		return core.Category{}, fmt.Errorf("decode subcategories for %s: %w", cat.ID, err)
	}
	return cat, nil
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var trxDate string
	if err := row.Scan(&e.ID, &trxDate, &e.Description, &e.Amount, &e.CategoryID, &e.SubcategoryID, &e.ImportID); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseISODate(trxDate)
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode trx_date for %s: %w", e.ID, err)
	}
	e.TrxDate = d
	return e, nil
}

func scanImport(row rowScanner) (core.Import, error) {
	var imp core.Import
	var importDate string
	if err := row.Scan(&imp.ID, &importDate, &imp.FileName, &imp.Description, &imp.RecordCount, &imp.DateFormat); err != nil {
		return core.Import{}, err
	}
	t, err := time.Parse(time.RFC3339, importDate)
	if err != nil {
		return core.Import{}, fmt.Errorf("decode import_date for %s: %w", imp.ID, err)
	}
	imp.ImportDate = t
	return imp, nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func marshalSubcategories(subs []core.Subcategory) (string, error) {
	if subs == nil {
		subs = []core.Subcategory{}
	}
	doc, err := json.Marshal(subs)
	if err != nil {
		return "", fmt.Errorf("encode subcategories: %w", err)
	}
	return string(doc), nil
}

func fillSubcategoryIDs(cat *core.Category) {
	for i := range cat.Subcategories {
		if cat.Subcategories[i].ID == "" {
			cat.Subcategories[i].ID = uuid.NewString()
		}
		cat.Subcategories[i].ParentCategoryID = cat.ID
	}
}

// filterClause builds the WHERE clause shared by the expense reads. ISO dates
// compare correctly as strings.
func filterClause(filter ExpenseFilter) (string, []any) {
	conds := []string{}
	args := []any{}
	if filter.StartDate != nil {
		conds = append(conds, "trx_date >= ?")
		args = append(args, filter.StartDate.String())
	}
	if filter.EndDate != nil {
		conds = append(conds, "trx_date <= ?")
		args = append(args, filter.EndDate.String())
	}
	if len(filter.CategoryIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.CategoryIDs)), ", ")
		conds = append(conds, "category_id IN ("+placeholders+")")
		for _, id := range filter.CategoryIDs {
			args = append(args, id)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// resolveTotalNames fills category and subcategory display names from the
// category documents. Unknown ids keep empty names, which the rollup renders
// as "Unknown".
func (r *SQLiteRepository) resolveTotalNames(ctx context.Context, totals []core.SubcategoryTotalRow) error {
	categories, err := r.ListCategories(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]core.Category, len(categories))
	for _, cat := range categories {
		byID[cat.ID] = cat
	}
	for i := range totals {
		cat, ok := byID[totals[i].CategoryID]
		if !ok {
			continue
		}
		totals[i].CategoryName = cat.Name
		if sub, ok := cat.Subcategory(totals[i].SubcategoryID); ok {
			totals[i].SubcategoryName = sub.Name
		}
	}
	return nil
}

func (r *SQLiteRepository) categoryNames(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("category names: %w", err)
	}
	defer rows.Close()

	names := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
