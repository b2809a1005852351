// Date formats arrive from the client in the day.js token style the browser
// uses (e.g. "MM/DD/YYYY"). This file converts those tokens to Go reference
// layouts and parses transaction dates strictly under the declared format.
package core

import (
	"fmt"
	"strings"
	"time"
)

// formatTokens maps day.js tokens to Go reference-layout fragments, longest
// token first so "MM" is not consumed as two "M"s.
var formatTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
}

// LayoutFromFormat converts a day.js-style date format to a Go time layout.
// Unrecognized alphabetic characters make the format invalid; punctuation and
// spaces pass through as literals.
func LayoutFromFormat(format string) (string, error) {
	var b strings.Builder
	rest := format
	for len(rest) > 0 {
		matched := false
		for _, ft := range formatTokens {
			if strings.HasPrefix(rest, ft.token) {
				b.WriteString(ft.layout)
				rest = rest[len(ft.token):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		ch := rest[0]
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' {
			return "", fmt.Errorf("unsupported date format token %q in %q", string(ch), format)
		}
		b.WriteByte(ch)
		rest = rest[1:]
	}
	return b.String(), nil
}

// ParseDate parses a date string under a day.js-style format, returning
// ErrInvalidDate when either the format or the value does not parse.
func ParseDate(value, format string) (Date, error) {
	layout, err := LayoutFromFormat(format)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q under format %q", ErrInvalidDate, value, format)
	}
	return Date{Time: t}, nil
}
