package core

import (
	"strings"
	"time"
)

// DateLayout is the canonical storage and JSON form.
const DateLayout = "2006-01-02"

// dateLayouts lists the forms seen in the BIC open-data exports, most common first.
var dateLayouts = []string{
	"01/02/2006",
	DateLayout,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"1/2/2006",
	"2006/01/02",
}

// ParseDate parses a date cell. An empty cell returns ErrMissingField;
// anything that matches no known layout returns ErrUnparseableDate.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "nat") {
		return Date{}, ErrMissingField
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, ErrUnparseableDate
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic("core: bad date literal " + s)
	}
	return d
}
