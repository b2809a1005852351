package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"outlay/internal/core"
	"outlay/internal/services"
	"outlay/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	importer := services.NewImportService(store, nil)
	srv := NewServer(":0", store, importer, Options{})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d, want 200", path, rec.Code)
		}
	}
}

func TestCategoryCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/category", map[string]any{
		"name": "Auto",
		"subcategories": []map[string]any{
			{"name": "Gas", "matchText": []string{"Exxon"}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	created := decode[core.Category](t, rec)
	if created.ID == "" || created.Subcategories[0].ID == "" {
		t.Fatalf("missing generated ids: %+v", created)
	}

	// Duplicate name conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/category", map[string]any{"name": "auto"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate = %d, want 409", rec.Code)
	}

	// Empty name is unprocessable.
	rec = doJSON(t, srv, http.MethodPost, "/category", map[string]any{"name": "  "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name = %d, want 422", rec.Code)
	}

	created.Name = "Automotive"
	rec = doJSON(t, srv, http.MethodPut, "/category/"+created.ID, map[string]any{
		"name":          created.Name,
		"subcategories": created.Subcategories,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/category", nil)
	listed := decode[[]core.Category](t, rec)
	if len(listed) != 1 || listed[0].Name != "Automotive" {
		t.Fatalf("list = %+v", listed)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/category/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/category/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing = %d, want 404", rec.Code)
	}
}

func TestExpenseCRUDAndValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/expense", map[string]any{
		"trxDate":     "2021-01-15",
		"description": "Coffee",
		"amount":      3.75,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	created := decode[core.Expense](t, rec)

	// Non-positive amounts are rejected.
	rec = doJSON(t, srv, http.MethodPost, "/expense", map[string]any{
		"trxDate":     "2021-01-15",
		"description": "Free",
		"amount":      0,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero amount = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/expense/"+created.ID, map[string]any{
		"trxDate":     "2021-01-16",
		"description": "Espresso",
		"amount":      4.25,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/expense/"+created.ID, nil)
	got := decode[core.Expense](t, rec)
	if got.Description != "Espresso" || got.TrxDate.String() != "2021-01-16" {
		t.Fatalf("get = %+v", got)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/expense/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/expense/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing = %d, want 404", rec.Code)
	}
}

func TestExpenseSummaryEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	auto, err := store.CreateCategory(ctx, core.Category{
		Name:          "Auto",
		Subcategories: []core.Subcategory{{Name: "Gas"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	travel, err := store.CreateCategory(ctx, core.Category{Name: "Travel"})
	if err != nil {
		t.Fatal(err)
	}

	seed := []core.Expense{
		{TrxDate: core.NewDate(2021, 1, 5), Description: "gas", Amount: 60, CategoryID: auto.ID, SubcategoryID: auto.Subcategories[0].ID},
		{TrxDate: core.NewDate(2021, 1, 6), Description: "gas", Amount: 40, CategoryID: auto.ID, SubcategoryID: auto.Subcategories[0].ID},
		{TrxDate: core.NewDate(2021, 1, 7), Description: "hotel", Amount: 100, CategoryID: travel.ID},
	}
	for _, e := range seed {
		if _, err := store.CreateExpense(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/expense/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary = %d: %s", rec.Code, rec.Body)
	}
	summary := decode[[]core.ExpenseSummary](t, rec)
	if len(summary) != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	for _, s := range summary {
		if s.Percent != 50 {
			t.Fatalf("percent = %v, want 50: %+v", s.Percent, s)
		}
	}

	// Filtered by category.
	rec = doJSON(t, srv, http.MethodGet, "/expense/summary?categoryIds="+auto.ID, nil)
	filtered := decode[[]core.ExpenseSummary](t, rec)
	if len(filtered) != 1 || filtered[0].Percent != 100 {
		t.Fatalf("filtered summary = %+v", filtered)
	}

	// Bad date filter is a 400.
	rec = doJSON(t, srv, http.MethodGet, "/expense/summary?startDate=15/01/2021", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter = %d, want 400", rec.Code)
	}
}

func TestExpenseTimeSeriesEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	auto, err := store.CreateCategory(ctx, core.Category{Name: "Auto"})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []core.Date{core.NewDate(2021, 1, 5), core.NewDate(2021, 2, 5)} {
		if _, err := store.CreateExpense(ctx, core.Expense{TrxDate: d, Description: "gas", Amount: 10, CategoryID: auto.ID}); err != nil {
			t.Fatal(err)
		}
	}
	// An uncategorized expense gets its own "Unknown" series.
	if _, err := store.CreateExpense(ctx, core.Expense{TrxDate: core.NewDate(2021, 1, 9), Description: "?", Amount: 5}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/expense/timeseries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timeseries = %d: %s", rec.Code, rec.Body)
	}
	series := decode[[]core.Series](t, rec)
	if len(series) != 2 {
		t.Fatalf("series = %+v", series)
	}
	names := map[string]int{}
	for _, s := range series {
		names[s.Name] = len(s.Data)
	}
	if names["Auto"] != 2 || names["Unknown"] != 1 {
		t.Fatalf("series shape = %v", names)
	}
}

func TestSummaryCacheInvalidatedByWrites(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, core.Category{Name: "Auto"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateExpense(ctx, core.Expense{TrxDate: core.NewDate(2021, 1, 5), Description: "gas", Amount: 10, CategoryID: cat.ID}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/expense/summary", nil)
	first := decode[[]core.ExpenseSummary](t, rec)
	if first[0].TotalAmount != 10 {
		t.Fatalf("first read = %+v", first)
	}

	// A write through the API must drop the cached summary.
	rec = doJSON(t, srv, http.MethodPost, "/expense", map[string]any{
		"trxDate":     "2021-01-06",
		"description": "more gas",
		"amount":      5,
		"categoryId":  cat.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/expense/summary", nil)
	second := decode[[]core.ExpenseSummary](t, rec)
	if second[0].TotalAmount != 15 {
		t.Fatalf("stale summary after write: %+v", second)
	}
}

func TestImportEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "jan.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("01/15/2021,Corner Market,-42.50\n01/16/2021,Coffee,-3.75\n"))
	mw.WriteField("description", "January statement")
	mw.WriteField("dateFormat", "MM/DD/YYYY")
	mw.WriteField("negativeExpenses", "true")
	mw.WriteField("dateField", "1")
	mw.WriteField("descriptionField", "2")
	mw.WriteField("amountField", "3")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/expense/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("import = %d: %s", rec.Code, rec.Body)
	}
	result := decode[services.ImportResult](t, rec)
	if result.Accepted != 2 || result.Import.FileName != "jan.csv" {
		t.Fatalf("result = %+v", result)
	}

	rec = doJSON(t, srv, http.MethodGet, "/import", nil)
	imports := decode[[]core.Import](t, rec)
	if len(imports) != 1 {
		t.Fatalf("imports = %+v", imports)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/expense/import/"+result.Import.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete import = %d", rec.Code)
	}
	all, err := store.ListExpenses(context.Background(), storage.ExpenseFilter{})
	if err != nil || len(all) != 0 {
		t.Fatalf("cascade failed: %v, %d rows", err, len(all))
	}
}

func TestImportEndpointRejectsBadForm(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "jan.csv")
	fw.Write([]byte("01/15/2021,Coffee,-3.75\n"))
	mw.WriteField("dateFormat", "bogus")
	mw.WriteField("dateField", "1")
	mw.WriteField("descriptionField", "2")
	mw.WriteField("amountField", "3")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/expense/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date format = %d, want 400: %s", rec.Code, rec.Body)
	}
}

func TestSignInCreatesUserOnce(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/user/signin", map[string]any{"username": "Alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin = %d: %s", rec.Code, rec.Body)
	}
	first := decode[core.User](t, rec)
	if first.Username != "alice" {
		t.Fatalf("username = %q, want lowercased", first.Username)
	}

	rec = doJSON(t, srv, http.MethodPost, "/user/signin", map[string]any{"username": "alice"})
	second := decode[core.User](t, rec)
	if second.ID != first.ID {
		t.Fatalf("second signin created a new user: %+v vs %+v", second, first)
	}

	rec = doJSON(t, srv, http.MethodGet, "/user/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get user = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/user/bob", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing user = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/user/signin", map[string]any{"username": "   "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank username = %d, want 422", rec.Code)
	}
}

func TestDeleteReferencedCategoryConflicts(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	cat, err := store.CreateCategory(ctx, core.Category{Name: "Auto"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateExpense(ctx, core.Expense{TrxDate: core.NewDate(2021, 1, 5), Description: "gas", Amount: 10, CategoryID: cat.ID}); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodDelete, "/category/"+cat.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete referenced = %d, want 409: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected error body, got %s", rec.Body)
	}
}
