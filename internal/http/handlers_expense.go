package http

import (
	"net/http"

	"outlay/internal/core"
)

type expenseRequest struct {
	TrxDate       core.Date `json:"trxDate"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	CategoryID    string    `json:"categoryId"`
	SubcategoryID string    `json:"subcategoryId"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	expenses, err := s.store.ListExpenses(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	e := core.Expense{
		TrxDate:       req.TrxDate,
		Description:   sanitizeInput(req.Description),
		Amount:        req.Amount,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
	}
	if err := e.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.store.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	e := core.Expense{
		ID:            r.PathValue("id"),
		TrxDate:       req.TrxDate,
		Description:   sanitizeInput(req.Description),
		Amount:        req.Amount,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
	}
	if err := e.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.store.UpdateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	w.WriteHeader(http.StatusNoContent)
}

// handleExpenseTotals returns the raw per-(category, subcategory) totals the
// summary is folded from.
func (s *Server) handleExpenseTotals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	totals, err := s.store.SubcategoryTotals(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	key := filterCacheKey(filter)
	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	totals, err := s.store.SubcategoryTotals(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary := core.RollupByCategory(totals)
	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExpenseTimeSeries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	key := filterCacheKey(filter)
	if cached, ok := s.seriesCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	buckets, err := s.store.TimeBuckets(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	series := core.ToTimeSeries(buckets)
	s.seriesCache.Set(key, series)
	writeJSON(w, http.StatusOK, series)
}
