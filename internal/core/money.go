// Package core provides money and date parsing utilities.
//
// This file contains functions for parsing fine amounts from spreadsheet
// cells and converting between cents and dollar representations.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseFine converts a fine cell to cents with half-up rounding.
//
// It accepts an optional leading "$", thousands separators and surrounding
// whitespace. An empty cell is reported as absent (Valid=false, nil error);
// malformed or negative values return ErrInvalidAmount.
//
// Examples:
//
//	ParseFine("$1,250.00") -> {125000, true}, nil
//	ParseFine("500")       -> {50000, true}, nil
//	ParseFine("12.345")    -> {1235, true}, nil
//	ParseFine("")          -> {0, false}, nil
func ParseFine(s string) (NullMoney, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return NullMoney{}, nil
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return NullMoney{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return NullMoney{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(math.MaxInt64/2)) {
		return NullMoney{}, ErrInvalidAmount
	}
	return NewFine(cents.IntPart()), nil
}

// Dollars returns the amount as a float64 for display and statistics.
// Note: use cents for sums to avoid floating-point drift.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as "$1,234.56".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + leftPad2(cents%100)
	if neg {
		return "-" + out
	}
	return out
}

// DecimalString formats the amount as a plain decimal ("1234.56"), the form
// written back to spreadsheets.
func (m Money) DecimalString() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// RoundCents rounds a fractional cent value half away from zero.
func RoundCents(v float64) Money {
	return Money{Cents: int64(math.Round(v))}
}

func leftPad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}

// MarshalJSON encodes the amount as a JSON number in dollars, e.g. 1250.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.DecimalString()), nil
}

// UnmarshalJSON accepts a JSON number or a string such as "$1,250.00".
func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := ParseFine(s)
	if err != nil {
		return err
	}
	if !v.Valid {
		return ErrInvalidAmount
	}
	*m = v.Money
	return nil
}
