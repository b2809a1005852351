package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"outlay/internal/core"
)

// MemoryStore is an in-memory Store used by the memory backend and by tests.
// It honors the same ordering contracts as the sqlite repository.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]core.Category
	expenses   map[string]core.Expense
	imports    map[string]core.Import
	users      map[string]core.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: map[string]core.Category{},
		expenses:   map[string]core.Expense{},
		imports:    map[string]core.Import{},
		users:      map[string]core.User{},
	}
}

func (s *MemoryStore) Close() error { return nil }

// --- categories ---

func (s *MemoryStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]core.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return cat, nil
}

func (s *MemoryStore) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, cat.Name) {
			return core.Category{}, fmt.Errorf("category %q: %w", cat.Name, core.ErrDuplicateName)
		}
	}
	fillSubcategoryIDs(&cat)
	s.categories[cat.ID] = cat
	return cat, nil
}

func (s *MemoryStore) UpdateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[cat.ID]; !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", cat.ID, ErrNotFound)
	}
	for id, existing := range s.categories {
		if id != cat.ID && strings.EqualFold(existing.Name, cat.Name) {
			return core.Category{}, fmt.Errorf("category %q: %w", cat.Name, core.ErrDuplicateName)
		}
	}
	fillSubcategoryIDs(&cat)
	s.categories[cat.ID] = cat
	return cat, nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	for _, e := range s.expenses {
		if e.CategoryID == id {
			return fmt.Errorf("category %s is referenced: %w", id, ErrConflict)
		}
	}
	delete(s.categories, id)
	return nil
}

// --- expenses ---

func (s *MemoryStore) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredExpenses(filter), nil
}

func (s *MemoryStore) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *MemoryStore) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[e.ID]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, ErrNotFound)
	}
	e.ImportID = existing.ImportID
	s.expenses[e.ID] = e
	return e, nil
}

func (s *MemoryStore) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	delete(s.expenses, id)
	return nil
}

func (s *MemoryStore) SubcategoryTotals(ctx context.Context, filter ExpenseFilter) ([]core.SubcategoryTotalRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ cat, sub string }
	sums := map[key]float64{}
	for _, e := range s.filteredExpenses(filter) {
		sums[key{e.CategoryID, e.SubcategoryID}] += e.Amount
	}

	totals := make([]core.SubcategoryTotalRow, 0, len(sums))
	for k, sum := range sums {
		row := core.SubcategoryTotalRow{CategoryID: k.cat, SubcategoryID: k.sub, TotalAmount: sum}
		if cat, ok := s.categories[k.cat]; ok {
			row.CategoryName = cat.Name
			if sub, ok := cat.Subcategory(k.sub); ok {
				row.SubcategoryName = sub.Name
			}
		}
		totals = append(totals, row)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].CategoryID != totals[j].CategoryID {
			return totals[i].CategoryID < totals[j].CategoryID
		}
		return totals[i].SubcategoryID < totals[j].SubcategoryID
	})
	return totals, nil
}

func (s *MemoryStore) TimeBuckets(ctx context.Context, filter ExpenseFilter) ([]core.TimeBucketRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		cat         string
		year, month int
	}
	sums := map[key]float64{}
	for _, e := range s.filteredExpenses(filter) {
		sums[key{e.CategoryID, e.TrxDate.Year(), int(e.TrxDate.Month())}] += e.Amount
	}

	buckets := make([]core.TimeBucketRow, 0, len(sums))
	for k, sum := range sums {
		row := core.TimeBucketRow{CategoryID: k.cat, TrxYear: k.year, TrxMonth: k.month, TotalAmount: sum}
		if cat, ok := s.categories[k.cat]; ok {
			row.CategoryName = cat.Name
		}
		buckets = append(buckets, row)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].CategoryID != buckets[j].CategoryID {
			return buckets[i].CategoryID < buckets[j].CategoryID
		}
		if buckets[i].TrxYear != buckets[j].TrxYear {
			return buckets[i].TrxYear < buckets[j].TrxYear
		}
		return buckets[i].TrxMonth < buckets[j].TrxMonth
	})
	return buckets, nil
}

func (s *MemoryStore) ListUncategorized(ctx context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := []core.Expense{}
	for _, e := range s.expenses {
		if e.CategoryID == "" {
			expenses = append(expenses, e)
		}
	}
	sortExpenses(expenses)
	return expenses, nil
}

func (s *MemoryStore) UpdateExpenseCategory(ctx context.Context, id, categoryID, subcategoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	e.CategoryID = categoryID
	e.SubcategoryID = subcategoryID
	s.expenses[id] = e
	return nil
}

// --- imports ---

func (s *MemoryStore) ListImports(ctx context.Context) ([]core.Import, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	imports := make([]core.Import, 0, len(s.imports))
	for _, imp := range s.imports {
		imports = append(imports, imp)
	}
	sort.Slice(imports, func(i, j int) bool {
		return imports[i].ImportDate.After(imports[j].ImportDate)
	})
	return imports, nil
}

func (s *MemoryStore) GetImport(ctx context.Context, id string) (core.Import, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	imp, ok := s.imports[id]
	if !ok {
		return core.Import{}, fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	return imp, nil
}

func (s *MemoryStore) CreateImportBatch(ctx context.Context, imp core.Import, expenses []core.Expense) (core.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp.ImportDate.IsZero() {
		imp.ImportDate = time.Now().UTC()
	}
	imp.RecordCount = len(expenses)
	s.imports[imp.ID] = imp

	for _, e := range expenses {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.ImportID = imp.ID
		s.expenses[e.ID] = e
	}
	return imp, nil
}

func (s *MemoryStore) DeleteImport(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.imports[id]; !ok {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	for eid, e := range s.expenses {
		if e.ImportID == id {
			delete(s.expenses, eid)
		}
	}
	delete(s.imports, id)
	return nil
}

func (s *MemoryStore) ListExpensesByImport(ctx context.Context, importID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := []core.Expense{}
	for _, e := range s.expenses {
		if e.ImportID == importID {
			expenses = append(expenses, e)
		}
	}
	sortExpenses(expenses)
	return expenses, nil
}

// --- users ---

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemoryStore) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrDuplicateName)
		}
	}
	s.users[u.ID] = u
	return u, nil
}

// filteredExpenses returns expenses matching the filter, ordered by date then
// id. Callers must hold at least the read lock.
func (s *MemoryStore) filteredExpenses(filter ExpenseFilter) []core.Expense {
	wantCat := map[string]struct{}{}
	for _, id := range filter.CategoryIDs {
		wantCat[id] = struct{}{}
	}

	expenses := []core.Expense{}
	for _, e := range s.expenses {
		if filter.StartDate != nil && e.TrxDate.Before(filter.StartDate.Time) {
			continue
		}
		if filter.EndDate != nil && e.TrxDate.After(filter.EndDate.Time) {
			continue
		}
		if len(wantCat) > 0 {
			if _, ok := wantCat[e.CategoryID]; !ok {
				continue
			}
		}
		expenses = append(expenses, e)
	}
	sortExpenses(expenses)
	return expenses
}

func sortExpenses(expenses []core.Expense) {
	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].TrxDate.Equal(expenses[j].TrxDate.Time) {
			return expenses[i].TrxDate.Before(expenses[j].TrxDate.Time)
		}
		return expenses[i].ID < expenses[j].ID
	})
}
