// The expense aggregator reshapes flat, pre-grouped totals (the output of a
// storage group-by) into display-ready rollups and chart series. Both
// operations are single linear passes that rely on the documented
// precondition that rows sharing a category arrive contiguously; they never
// sort, re-group, or mutate their input.
package core

import (
	"math"
	"time"
)

type (
	// SubcategoryTotalRow is one pre-grouped row of per-(category,
	// subcategory) totals. Subcategory fields are empty for expenses
	// without a subcategory.
	SubcategoryTotalRow struct {
		CategoryID      string  `json:"categoryId"`
		SubcategoryID   string  `json:"subcategoryId,omitempty"`
		CategoryName    string  `json:"categoryName"`
		SubcategoryName string  `json:"subcategoryName,omitempty"`
		TotalAmount     float64 `json:"totalAmount"`
	}

	// SubcategoryTotal is one subcategory bucket inside an ExpenseSummary.
	SubcategoryTotal struct {
		SubcategoryID   string  `json:"subcategoryId"`
		SubcategoryName string  `json:"subcategoryName"`
		TotalAmount     float64 `json:"totalAmount"`
	}

	// ExpenseSummary is a category-level rollup with its share of the
	// grand total. Produced fresh on every call, never cached.
	ExpenseSummary struct {
		CategoryID        string             `json:"categoryId"`
		CategoryName      string             `json:"categoryName"`
		TotalAmount       float64            `json:"totalAmount"`
		Percent           float64            `json:"percent"`
		SubcategoryTotals []SubcategoryTotal `json:"subcategoryTotals"`
	}

	// TimeBucketRow is one pre-grouped row of per-(category, year-month)
	// totals. TrxYear of zero marks a row without a time bucket; such
	// rows produce no chart point.
	TimeBucketRow struct {
		CategoryID   string  `json:"categoryId"`
		CategoryName string  `json:"categoryName"`
		TrxYear      int     `json:"trxYear"`
		TrxMonth     int     `json:"trxMonth"`
		TotalAmount  float64 `json:"totalAmount"`
	}

	// SeriesPoint is a [timestamp-milliseconds, amount] chart point.
	SeriesPoint [2]float64

	// Series is one per-category time series for charting.
	Series struct {
		Name string        `json:"name"`
		Data []SeriesPoint `json:"data"`
	}
)

// RollupByCategory folds contiguous per-subcategory rows into one
// ExpenseSummary per category.
//
// Precondition: rows sharing a CategoryID are contiguous. The walk flushes
// the running accumulator whenever the category changes; rows carrying a
// subcategory also append a SubcategoryTotal entry, independently of the
// running-total accumulation. A separate grand total across all rows feeds
// the percent computation in a second pass. Division follows IEEE-754: a zero
// grand total yields a non-finite percent rather than a guarded zero. Output
// order equals input order.
func RollupByCategory(rows []SubcategoryTotalRow) []ExpenseSummary {
	summaries := []ExpenseSummary{}
	var current ExpenseSummary
	started := false
	prevCatID := ""
	grandTotal := 0.0

	for _, row := range rows {
		if !started || row.CategoryID != prevCatID {
			if started {
				summaries = append(summaries, current)
			}
			current = ExpenseSummary{
				CategoryID:        row.CategoryID,
				CategoryName:      row.CategoryName,
				TotalAmount:       row.TotalAmount,
				SubcategoryTotals: []SubcategoryTotal{},
			}
			started = true
			prevCatID = row.CategoryID
		} else {
			current.TotalAmount += row.TotalAmount
		}

		if row.SubcategoryID != "" && row.SubcategoryName != "" {
			current.SubcategoryTotals = append(current.SubcategoryTotals, SubcategoryTotal{
				SubcategoryID:   row.SubcategoryID,
				SubcategoryName: row.SubcategoryName,
				TotalAmount:     row.TotalAmount,
			})
		}

		grandTotal += row.TotalAmount
	}
	if started {
		summaries = append(summaries, current)
	}

	for i := range summaries {
		summaries[i].Percent = summaries[i].TotalAmount / grandTotal * 100
	}
	return summaries
}

// ToTimeSeries reshapes contiguous per-(category, year-month) rows into one
// chart series per category run.
//
// Precondition: rows sharing a CategoryID are contiguous and chronological
// within the run. An empty CategoryID groups the "Unknown" rows together
// instead of breaking the series on every row. Rows without a year emit no
// point but do not end the current series. Points carry the UTC timestamp of
// the first day of the bucket month in milliseconds, with amounts rounded to
// two decimals.
func ToTimeSeries(rows []TimeBucketRow) []Series {
	series := []Series{}
	data := []SeriesPoint{}
	started := false
	prevCatID := ""
	prevCatName := ""

	for _, row := range rows {
		if started && row.CategoryID != prevCatID {
			series = append(series, Series{Name: seriesName(prevCatName), Data: data})
			data = []SeriesPoint{}
		}
		if row.TrxYear != 0 {
			ts := time.Date(row.TrxYear, time.Month(row.TrxMonth), 1, 0, 0, 0, 0, time.UTC)
			data = append(data, SeriesPoint{
				float64(ts.UnixMilli()),
				math.Round(row.TotalAmount*100) / 100,
			})
		}
		started = true
		prevCatID = row.CategoryID
		prevCatName = row.CategoryName
	}
	if started {
		series = append(series, Series{Name: seriesName(prevCatName), Data: data})
	}
	return series
}

func seriesName(categoryName string) string {
	if categoryName == "" {
		return "Unknown"
	}
	return categoryName
}
