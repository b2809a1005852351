package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a calendar date with no time component. It marshals as
	// YYYY-MM-DD, which is also the storage representation.
	Date struct {
		time.Time
	}

	// Subcategory is owned by exactly one Category. Its ID is globally
	// unique, not just unique within the parent, because expenses
	// reference subcategories directly.
	Subcategory struct {
		ID               string   `json:"id"`
		ParentCategoryID string   `json:"parentCategoryId,omitempty"`
		Name             string   `json:"name"`
		MatchText        []string `json:"matchText,omitempty"`
	}

	// Category is a two-level taxonomy root. It is read and written as a
	// single document together with its subcategories.
	Category struct {
		ID            string        `json:"id"`
		Name          string        `json:"name"`
		Subcategories []Subcategory `json:"subcategories"`
	}

	// Expense is a single transaction. Amount is a positive magnitude;
	// the sign convention is resolved at import time and never
	// re-derived. Empty CategoryID/SubcategoryID means "Unknown".
	Expense struct {
		ID            string  `json:"id"`
		TrxDate       Date    `json:"trxDate"`
		Description   string  `json:"description"`
		Amount        float64 `json:"amount"`
		CategoryID    string  `json:"categoryId,omitempty"`
		SubcategoryID string  `json:"subcategoryId,omitempty"`
		ImportID      string  `json:"importId,omitempty"`
	}

	// Import records one CSV upload event. Deleting an Import cascades
	// to the expenses it produced.
	Import struct {
		ID          string    `json:"id"`
		ImportDate  time.Time `json:"importDate"`
		FileName    string    `json:"fileName"`
		Description string    `json:"description"`
		RecordCount int       `json:"recordCount"`
		DateFormat  string    `json:"dateFormat"`
	}

	// User is a username-only identity; there is no password.
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyName        = errors.New("empty name")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrEmptyDescription = errors.New("empty description")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseISODate parses a YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.TrxDate.Validate(); err != nil {
		return err
	}
	if !validAmount(e.Amount) {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the category name and the case-insensitive uniqueness of
// subcategory names within this category. Cross-category name uniqueness is
// enforced by storage.
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	seen := make(map[string]struct{}, len(c.Subcategories))
	for _, sub := range c.Subcategories {
		if strings.TrimSpace(sub.Name) == "" {
			return ErrEmptyName
		}
		key := strings.ToLower(sub.Name)
		if _, ok := seen[key]; ok {
			return ErrDuplicateName
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Subcategory returns the subcategory with the given id, if present.
func (c Category) Subcategory(id string) (Subcategory, bool) {
	for _, sub := range c.Subcategories {
		if sub.ID == id {
			return sub, true
		}
	}
	return Subcategory{}, false
}
