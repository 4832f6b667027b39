// Package analytics computes the derived tables behind the compliance
// dashboards: summary figures, yearly trends, rankings, per-group breakdowns
// and fine/count correlations.
//
// Every operation is a pure function over an in-memory slice of Records.
// Rows with missing required fields are excluded up front by Prepare and
// counted; no operation fails because of a bad row.
package analytics

import (
	"bicdash/internal/core"
	"bicdash/internal/labels"
)

// DefaultCutoffYear is the earliest year the dashboards analyse.
const DefaultCutoffYear = 2015

// Record is a violation that passed preparation, with its derived label.
type Record struct {
	core.Violation
	Label string
	Year  int
}

// Dataset is an immutable prepared snapshot of both BIC datasets.
type Dataset struct {
	Violations         []Record
	Complaints         []core.Complaint
	Cutoff             int
	Excluded           core.Exclusions
	ExcludedComplaints core.Exclusions
}

// Prepare validates, filters by cutoff year and labels the raw rows.
// Input order is preserved. A nil normalizer uses the default dictionary.
func Prepare(violations []core.Violation, complaints []core.Complaint, cutoff int, n *labels.Normalizer) *Dataset {
	if n == nil {
		n = labels.Default()
	}
	ds := &Dataset{
		Violations:         make([]Record, 0, len(violations)),
		Complaints:         make([]core.Complaint, 0, len(complaints)),
		Cutoff:             cutoff,
		Excluded:           core.Exclusions{},
		ExcludedComplaints: core.Exclusions{},
	}
	for _, v := range violations {
		if err := v.Validate(); err != nil {
			ds.Excluded.Add(core.ReasonFor(err))
			continue
		}
		year := v.Date.Year()
		if year < cutoff {
			ds.Excluded.Add(core.ReasonBeforeCutoff)
			continue
		}
		ds.Violations = append(ds.Violations, Record{Violation: v, Label: n.Label(v.Rule), Year: year})
	}
	for _, c := range complaints {
		if err := c.Validate(); err != nil {
			ds.ExcludedComplaints.Add(core.ReasonFor(err))
			continue
		}
		if c.Date.Year() < cutoff {
			ds.ExcludedComplaints.Add(core.ReasonBeforeCutoff)
			continue
		}
		ds.Complaints = append(ds.Complaints, c)
	}
	return ds
}

// FilterYears keeps records with from <= Year <= to. Zero bounds are open.
func FilterYears(records []Record, from, to int) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if from != 0 && r.Year < from {
			continue
		}
		if to != 0 && r.Year > to {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterComplaintYears is FilterYears for complaints.
func FilterComplaintYears(complaints []core.Complaint, from, to int) []core.Complaint {
	out := make([]core.Complaint, 0, len(complaints))
	for _, c := range complaints {
		y := c.Date.Year()
		if from != 0 && y < from {
			continue
		}
		if to != 0 && y > to {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Years returns the distinct years of both datasets in ascending order.
func (d *Dataset) Years() []int {
	seen := map[int]bool{}
	for _, r := range d.Violations {
		seen[r.Year] = true
	}
	for _, c := range d.Complaints {
		seen[c.Date.Year()] = true
	}
	return sortedInts(seen)
}
