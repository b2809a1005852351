package http

import (
	"fmt"
	"net/http"
	"strings"

	"outlay/internal/core"
	"outlay/internal/storage"
)

// parseExpenseFilter reads the shared expense query parameters:
// startDate and endDate as YYYY-MM-DD, categoryIds comma separated.
func parseExpenseFilter(r *http.Request) (storage.ExpenseFilter, error) {
	var filter storage.ExpenseFilter
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		d, err := core.ParseISODate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid startDate %q", v)
		}
		filter.StartDate = &d
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		d, err := core.ParseISODate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid endDate %q", v)
		}
		filter.EndDate = &d
	}
	if v := strings.TrimSpace(q.Get("categoryIds")); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.CategoryIDs = append(filter.CategoryIDs, id)
			}
		}
	}
	return filter, nil
}

// filterCacheKey flattens a filter into a cache key for the summary and
// time-series caches.
func filterCacheKey(filter storage.ExpenseFilter) string {
	var b strings.Builder
	if filter.StartDate != nil {
		b.WriteString(filter.StartDate.String())
	}
	b.WriteByte('|')
	if filter.EndDate != nil {
		b.WriteString(filter.EndDate.String())
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(filter.CategoryIDs, ","))
	return b.String()
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
