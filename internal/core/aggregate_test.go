package core

import (
	"math"
	"testing"
	"time"
)

func TestRollupByCategory(t *testing.T) {
	rows := []SubcategoryTotalRow{
		{CategoryID: "cat-1", CategoryName: "Auto", SubcategoryID: "sub-a", SubcategoryName: "Gas", TotalAmount: 60},
		{CategoryID: "cat-1", CategoryName: "Auto", SubcategoryID: "sub-b", SubcategoryName: "Service", TotalAmount: 40},
		{CategoryID: "cat-2", CategoryName: "Travel", SubcategoryID: "sub-c", SubcategoryName: "Hotels", TotalAmount: 100},
	}

	summaries := RollupByCategory(rows)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	auto := summaries[0]
	if auto.CategoryID != "cat-1" || auto.TotalAmount != 100 {
		t.Fatalf("auto = %+v, want cat-1 total 100", auto)
	}
	if auto.Percent != 50 {
		t.Fatalf("auto percent = %v, want 50", auto.Percent)
	}
	if len(auto.SubcategoryTotals) != 2 {
		t.Fatalf("auto subcategory totals = %d, want 2", len(auto.SubcategoryTotals))
	}
	if auto.SubcategoryTotals[0].SubcategoryName != "Gas" || auto.SubcategoryTotals[0].TotalAmount != 60 {
		t.Fatalf("first subcategory = %+v", auto.SubcategoryTotals[0])
	}

	travel := summaries[1]
	if travel.TotalAmount != 100 || travel.Percent != 50 {
		t.Fatalf("travel = %+v, want total 100 percent 50", travel)
	}
}

func TestRollupByCategoryUncategorizedFirst(t *testing.T) {
	// An empty CategoryID groups like any other id, including as the first
	// row of the walk.
	rows := []SubcategoryTotalRow{
		{CategoryID: "", CategoryName: "", TotalAmount: 25},
		{CategoryID: "", CategoryName: "", TotalAmount: 25},
		{CategoryID: "cat-1", CategoryName: "Auto", TotalAmount: 50},
	}
	summaries := RollupByCategory(rows)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].TotalAmount != 50 || summaries[0].CategoryID != "" {
		t.Fatalf("uncategorized summary = %+v", summaries[0])
	}
	if len(summaries[0].SubcategoryTotals) != 0 {
		t.Fatalf("expected no subcategory entries, got %d", len(summaries[0].SubcategoryTotals))
	}
}

func TestRollupByCategoryEmptyInput(t *testing.T) {
	summaries := RollupByCategory(nil)
	if summaries == nil || len(summaries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", summaries)
	}
}

func TestRollupByCategoryZeroGrandTotal(t *testing.T) {
	rows := []SubcategoryTotalRow{
		{CategoryID: "cat-1", CategoryName: "Auto", TotalAmount: 0},
	}
	summaries := RollupByCategory(rows)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if !math.IsNaN(summaries[0].Percent) {
		t.Fatalf("percent = %v, want NaN for a zero grand total", summaries[0].Percent)
	}
}

func TestRollupByCategoryIdempotent(t *testing.T) {
	rows := []SubcategoryTotalRow{
		{CategoryID: "cat-1", CategoryName: "Auto", SubcategoryID: "sub-a", SubcategoryName: "Gas", TotalAmount: 10},
		{CategoryID: "cat-2", CategoryName: "Travel", TotalAmount: 30},
	}
	first := RollupByCategory(rows)
	second := RollupByCategory(rows)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].CategoryID != second[i].CategoryID ||
			first[i].TotalAmount != second[i].TotalAmount ||
			first[i].Percent != second[i].Percent {
			t.Fatalf("summary %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestToTimeSeries(t *testing.T) {
	rows := []TimeBucketRow{
		{CategoryID: "cat-1", CategoryName: "Auto", TrxYear: 2021, TrxMonth: 1, TotalAmount: 50.456},
		{CategoryID: "cat-1", CategoryName: "Auto", TrxYear: 2021, TrxMonth: 2, TotalAmount: 30},
		{CategoryID: "cat-2", CategoryName: "Travel", TrxYear: 2021, TrxMonth: 1, TotalAmount: 200},
	}

	series := ToTimeSeries(rows)
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	if series[0].Name != "Auto" || series[1].Name != "Travel" {
		t.Fatalf("series names = %q, %q", series[0].Name, series[1].Name)
	}
	if len(series[0].Data) != 2 || len(series[1].Data) != 1 {
		t.Fatalf("series lengths = %d, %d", len(series[0].Data), len(series[1].Data))
	}

	jan := float64(time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	if series[0].Data[0][0] != jan {
		t.Fatalf("timestamp = %v, want %v", series[0].Data[0][0], jan)
	}
	if series[0].Data[0][1] != 50.46 {
		t.Fatalf("amount = %v, want 50.46 after rounding", series[0].Data[0][1])
	}
}

func TestToTimeSeriesUnknownCategory(t *testing.T) {
	rows := []TimeBucketRow{
		{CategoryID: "", CategoryName: "", TrxYear: 2021, TrxMonth: 3, TotalAmount: 12},
		{CategoryID: "", CategoryName: "", TrxYear: 2021, TrxMonth: 4, TotalAmount: 8},
	}
	series := ToTimeSeries(rows)
	if len(series) != 1 {
		t.Fatalf("got %d series, want 1", len(series))
	}
	if series[0].Name != "Unknown" {
		t.Fatalf("series name = %q, want Unknown", series[0].Name)
	}
	if len(series[0].Data) != 2 {
		t.Fatalf("got %d points, want 2", len(series[0].Data))
	}
}

func TestToTimeSeriesSkipsRowsWithoutYear(t *testing.T) {
	rows := []TimeBucketRow{
		{CategoryID: "cat-1", CategoryName: "Auto", TrxYear: 0, TrxMonth: 0, TotalAmount: 10},
		{CategoryID: "cat-1", CategoryName: "Auto", TrxYear: 2021, TrxMonth: 5, TotalAmount: 20},
	}
	series := ToTimeSeries(rows)
	if len(series) != 1 {
		t.Fatalf("got %d series, want 1", len(series))
	}
	if len(series[0].Data) != 1 {
		t.Fatalf("got %d points, want 1 (yearless row emits none)", len(series[0].Data))
	}
}

func TestToTimeSeriesEmptyInput(t *testing.T) {
	series := ToTimeSeries(nil)
	if series == nil || len(series) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", series)
	}
}
