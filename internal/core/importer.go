// The import normalizer turns one delimited bank-export record into a
// validated expense candidate. It is a pure function over the record, the
// user's field mapping, and the already-fetched category list; reading the
// uploaded file and persisting accepted candidates belong to the caller.
package core

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ImportFormData is the user-specified mapping for one CSV upload. Field
// positions are 1-based, matching the column numbers shown in the import
// dialog.
type ImportFormData struct {
	Description      string `json:"description"`
	DateFormat       string `json:"dateFormat"`
	NegativeExpenses bool   `json:"negativeExpenses"`
	HasHeaderRow     bool   `json:"hasHeaderRow"`
	DateField        int    `json:"dateField"`
	AmountField      int    `json:"amountField"`
	DescriptionField int    `json:"descriptionField"`
}

// ImportExpense is a normalized, validated expense candidate produced from
// one CSV record. Category ids are set only when a matchText pattern hit.
type ImportExpense struct {
	TrxDate       Date
	Description   string
	Amount        float64
	CategoryID    string
	SubcategoryID string
}

// ValidationError reports why a single record was rejected. It wraps
// ErrInvalidAmount or ErrInvalidDate so callers can branch on the cause.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseRecord converts one CSV record into an expense candidate.
//
// The record is split naively on commas; quoted commas inside a field are not
// handled, which matches the documented import behavior. A record with an
// empty first field is a blank line and is skipped: both return values are
// nil. Invalid amounts or dates return a *ValidationError; the caller decides
// whether to drop the record or abort the batch.
func ParseRecord(record string, form ImportFormData, categories []Category) (*ImportExpense, error) {
	fields := strings.Split(record, ",")
	if len(fields) == 0 || fields[0] == "" {
		return nil, nil
	}

	rawDate := stripQuotes(fieldAt(fields, form.DateField))
	description := stripQuotes(fieldAt(fields, form.DescriptionField))
	rawAmount := stripQuotes(fieldAt(fields, form.AmountField))

	amount, err := parseAmount(rawAmount, form.NegativeExpenses)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Value: rawAmount, Err: err}
	}

	trxDate, err := ParseDate(rawDate, form.DateFormat)
	if err != nil {
		return nil, &ValidationError{Field: "date", Value: rawDate, Err: err}
	}

	exp := &ImportExpense{
		TrxDate:     trxDate,
		Description: description,
		Amount:      amount,
	}
	if catID, subID, ok := MatchCategory(description, categories); ok {
		exp.CategoryID = catID
		exp.SubcategoryID = subID
	}
	return exp, nil
}

// ReadRecords reads the whole upload and splits it into records on newlines.
// Trailing blank lines are kept; ParseRecord skips them. A trailing carriage
// return per record is dropped so CRLF exports parse the same as LF ones.
func ReadRecords(r io.Reader) ([]string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	records := strings.Split(string(content), "\n")
	for i, rec := range records {
		records[i] = strings.TrimSuffix(rec, "\r")
	}
	return records, nil
}

// fieldAt returns the field at a 1-based position, or "" when the position is
// missing or out of range. Incomplete records fail later validation rather
// than erroring here.
func fieldAt(fields []string, pos int) string {
	idx := pos - 1
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

func stripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

// parseAmount normalizes a raw amount string: accounting parentheses become a
// minus sign, a leading currency symbol is dropped, and the negativeExpenses
// flag flips the sign so expenses are stored as positive magnitudes. The
// result must be a finite number strictly greater than zero.
func parseAmount(raw string, negativeExpenses bool) (float64, error) {
	s := raw
	if strings.HasPrefix(s, "(") {
		s = "-" + strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "$") {
		s = strings.TrimPrefix(s, "$")
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if negativeExpenses {
		amount = -amount
	}
	if !validAmount(amount) {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
