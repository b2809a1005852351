package core

import (
	"errors"
	"strings"
	"testing"
)

func testCategories() []Category {
	return []Category{
		{
			ID:   "cat-auto",
			Name: "Auto",
			Subcategories: []Subcategory{
				{ID: "sub-gas", Name: "Gas", MatchText: []string{"Exxon", "Valero"}},
				{ID: "sub-svc", Name: "Service", MatchText: []string{"Ford"}},
			},
		},
		{
			ID:   "cat-groc",
			Name: "Groceries",
			Subcategories: []Subcategory{
				{ID: "sub-market", Name: "Market", MatchText: []string{"Market"}},
			},
		},
	}
}

func usForm() ImportFormData {
	return ImportFormData{
		DateFormat:       "MM/DD/YYYY",
		DateField:        1,
		DescriptionField: 2,
		AmountField:      3,
	}
}

func TestParseRecordNegativeExpenses(t *testing.T) {
	form := usForm()
	form.NegativeExpenses = true

	exp, err := ParseRecord("01/15/2021,Grocery Store,-42.50", form, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Amount != 42.50 {
		t.Fatalf("amount = %v, want 42.50", exp.Amount)
	}
	if got := exp.TrxDate.String(); got != "2021-01-15" {
		t.Fatalf("date = %s, want 2021-01-15", got)
	}
}

func TestParseRecordPositiveExpenses(t *testing.T) {
	exp, err := ParseRecord("01/15/2021,Coffee,3.75", usForm(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Amount != 3.75 {
		t.Fatalf("amount = %v, want 3.75", exp.Amount)
	}
}

func TestParseRecordAmountNormalization(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		negative bool
		want     float64
	}{
		{"currency symbol and quotes", `$"19.99"`, false, 19.99},
		{"quotes only", `"12.00"`, false, 12},
		{"accounting parens", "(42.50)", true, 42.50},
		{"dollar after negation", "-7.25", true, 7.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := usForm()
			form.NegativeExpenses = tc.negative
			exp, err := ParseRecord("01/02/2021,Something,"+tc.raw, form, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exp.Amount != tc.want {
				t.Fatalf("amount = %v, want %v", exp.Amount, tc.want)
			}
		})
	}
}

func TestParseRecordRejectsBadAmounts(t *testing.T) {
	cases := []string{
		"01/02/2021,Desc,0",
		"01/02/2021,Desc,-5",
		"01/02/2021,Desc,abc",
		"01/02/2021,Desc,",
	}
	for _, record := range cases {
		_, err := ParseRecord(record, usForm(), nil)
		if err == nil {
			t.Fatalf("record %q: expected validation error", record)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "amount" {
			t.Fatalf("record %q: expected amount validation error, got %v", record, err)
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("record %q: expected ErrInvalidAmount, got %v", record, err)
		}
	}
}

func TestParseRecordRejectsBadDates(t *testing.T) {
	form := usForm()
	form.DateFormat = "YYYY-MM-DD"
	_, err := ParseRecord("not-a-date,Desc,10.00", form, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "date" {
		t.Fatalf("expected date validation error, got %v", err)
	}
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestParseRecordValidationSkipsMatching(t *testing.T) {
	// An invalid amount must short-circuit before categorization runs.
	_, err := ParseRecord("01/02/2021,Exxon Station,zero", usForm(), testCategories())
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestParseRecordSkipsBlankRecords(t *testing.T) {
	for _, record := range []string{"", ",second,10.00"} {
		exp, err := ParseRecord(record, usForm(), nil)
		if err != nil {
			t.Fatalf("record %q: unexpected error %v", record, err)
		}
		if exp != nil {
			t.Fatalf("record %q: expected skip, got %+v", record, exp)
		}
	}
}

func TestParseRecordAutoCategorization(t *testing.T) {
	exp, err := ParseRecord("01/02/2021,Exxon Station,25.00", usForm(), testCategories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.CategoryID != "cat-auto" || exp.SubcategoryID != "sub-gas" {
		t.Fatalf("got %s/%s, want cat-auto/sub-gas", exp.CategoryID, exp.SubcategoryID)
	}
}

func TestParseRecordLastMatchWins(t *testing.T) {
	cats := []Category{
		{ID: "cat-1", Name: "First", Subcategories: []Subcategory{
			{ID: "sub-1", Name: "One", MatchText: []string{"ABC"}},
		}},
		{ID: "cat-2", Name: "Second", Subcategories: []Subcategory{
			{ID: "sub-2", Name: "Two", MatchText: []string{"Market"}},
		}},
	}
	exp, err := ParseRecord("01/02/2021,ABC Market,5.00", usForm(), cats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.CategoryID != "cat-2" || exp.SubcategoryID != "sub-2" {
		t.Fatalf("got %s/%s, want the later match cat-2/sub-2", exp.CategoryID, exp.SubcategoryID)
	}
}

func TestParseRecordMatchIsCaseInsensitive(t *testing.T) {
	exp, err := ParseRecord("01/02/2021,EXXON fuel,9.00", usForm(), testCategories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.CategoryID != "cat-auto" {
		t.Fatalf("expected case-insensitive match, got %q", exp.CategoryID)
	}
}

func TestParseRecordEmptyDescriptionSkipsMatching(t *testing.T) {
	exp, err := ParseRecord("01/02/2021,,9.00", usForm(), testCategories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.CategoryID != "" || exp.SubcategoryID != "" {
		t.Fatalf("expected no categorization, got %s/%s", exp.CategoryID, exp.SubcategoryID)
	}
}

func TestReadRecords(t *testing.T) {
	content := "01/02/2021,A,1.00\r\n01/03/2021,B,2.00\n\n"
	records, err := ReadRecords(strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Trailing blank lines are kept for ParseRecord to skip.
	want := []string{"01/02/2021,A,1.00", "01/03/2021,B,2.00", "", ""}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d: %q", len(records), len(want), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Fatalf("record %d = %q, want %q", i, records[i], want[i])
		}
	}
}

func TestParseRecordMissingPositions(t *testing.T) {
	form := usForm()
	form.AmountField = 9 // out of range -> empty amount -> validation failure
	_, err := ParseRecord("01/02/2021,Desc,10.00", form, nil)
	if err == nil {
		t.Fatal("expected validation error for out-of-range amount position")
	}
}
