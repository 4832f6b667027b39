package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// NullMoney is a Money that may be absent, in the style of sql.NullInt64.
	NullMoney struct {
		Money Money
		Valid bool
	}

	// Violation is one row of the BIC violations dataset.
	Violation struct {
		Date    Date
		Account string // ACCOUNT NAME
		Rule    string // DESCRIPTION OF RULE, raw
		Fine    NullMoney
	}

	// Complaint is one row of the BIC complaints/inquiries dataset.
	Complaint struct {
		Date Date
	}
)

// Field names used in FieldError.
const (
	FieldDate    = "date"
	FieldAccount = "account_name"
	FieldRule    = "rule_description"
	FieldFine    = "fine_amount"
)

var (
	ErrMissingField    = errors.New("missing required field")
	ErrUnparseableDate = errors.New("unparseable date")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// FieldError reports which required field a record is missing.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date is missing.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when missing.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// NewFine returns a present fine of the given cents.
func NewFine(cents int64) NullMoney {
	return NullMoney{Money: Money{Cents: cents}, Valid: true}
}

// Validate checks the fields the aggregation pipeline requires. The rule
// description is optional: a record without one is labelled "Unknown".
func (v Violation) Validate() error {
	if v.Date.IsEmpty() {
		return &FieldError{Field: FieldDate, Err: ErrMissingField}
	}
	if strings.TrimSpace(v.Account) == "" {
		return &FieldError{Field: FieldAccount, Err: ErrMissingField}
	}
	if !v.Fine.Valid {
		return &FieldError{Field: FieldFine, Err: ErrMissingField}
	}
	if v.Fine.Money.Cents < 0 {
		return &FieldError{Field: FieldFine, Err: ErrInvalidAmount}
	}
	return nil
}

// Validate checks that the complaint carries a date.
func (c Complaint) Validate() error {
	if c.Date.IsEmpty() {
		return &FieldError{Field: FieldDate, Err: ErrMissingField}
	}
	return nil
}

// MissingField returns the field name carried by err, or "" if err is not a FieldError.
func MissingField(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
