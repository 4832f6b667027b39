package core

import (
	"errors"
	"sort"
)

// Reason names why a row was left out of aggregation.
type Reason string

const (
	ReasonMissingDate     Reason = "missing_date"
	ReasonUnparseableDate Reason = "unparseable_date"
	ReasonMissingAccount  Reason = "missing_account"
	ReasonMissingFine     Reason = "missing_fine"
	ReasonInvalidFine     Reason = "invalid_fine"
	ReasonBeforeCutoff    Reason = "before_cutoff"
)

// Exclusions counts dropped rows per reason. A nil Exclusions reads as empty.
type Exclusions map[Reason]int

// Add records one dropped row.
func (e Exclusions) Add(r Reason) {
	e[r]++
}

// Merge adds every count of other into e.
func (e Exclusions) Merge(other Exclusions) {
	for r, n := range other {
		e[r] += n
	}
}

// Total is the number of dropped rows.
func (e Exclusions) Total() int {
	n := 0
	for _, c := range e {
		n += c
	}
	return n
}

// Reasons returns the recorded reasons in name order.
func (e Exclusions) Reasons() []Reason {
	out := make([]Reason, 0, len(e))
	for r := range e {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ReasonFor maps a validation error to its exclusion reason.
func ReasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrUnparseableDate):
		return ReasonUnparseableDate
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidFine
	}
	switch MissingField(err) {
	case FieldDate:
		return ReasonMissingDate
	case FieldAccount:
		return ReasonMissingAccount
	case FieldFine:
		return ReasonMissingFine
	}
	return ReasonInvalidFine
}
