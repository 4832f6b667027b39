package analytics

import (
	"strings"

	"bicdash/internal/core"
)

// TrendPoint is one year of the long-term trends table.
type TrendPoint struct {
	Year                       int        `json:"year"`
	ComplaintCount             int        `json:"complaint_count"`
	ViolationCount             int        `json:"violation_count"`
	AverageFine                core.Money `json:"average_fine"`
	NewCategoryCount           int        `json:"new_category_count"`
	CumulativeNewCategoryCount int        `json:"cumulative_new_category_count"`
}

// YearlyTrend returns one point per year present in either input, ascending.
//
// A rule description is new in the year of its earliest date among records.
// Descriptions are compared as raw text, not by label.
func YearlyTrend(records []Record, complaints []core.Complaint) []TrendPoint {
	type acc struct {
		complaints, violations int
		fines                  int64
		newRules               int
	}
	years := map[int]*acc{}
	get := func(y int) *acc {
		a, ok := years[y]
		if !ok {
			a = &acc{}
			years[y] = a
		}
		return a
	}

	for _, c := range complaints {
		get(c.Date.Year()).complaints++
	}
	firstSeen := map[string]core.Date{}
	for _, r := range records {
		a := get(r.Year)
		a.violations++
		a.fines += r.Fine.Money.Cents
		if strings.TrimSpace(r.Rule) == "" {
			continue
		}
		if d, ok := firstSeen[r.Rule]; !ok || r.Date.Before(d.Time) {
			firstSeen[r.Rule] = r.Date
		}
	}
	for _, d := range firstSeen {
		get(d.Year()).newRules++
	}

	set := make(map[int]bool, len(years))
	for y := range years {
		set[y] = true
	}
	out := make([]TrendPoint, 0, len(set))
	cumulative := 0
	for _, y := range sortedInts(set) {
		a := years[y]
		cumulative += a.newRules
		out = append(out, TrendPoint{
			Year:                       y,
			ComplaintCount:             a.complaints,
			ViolationCount:             a.violations,
			AverageFine:                meanCents(a.fines, a.violations),
			NewCategoryCount:           a.newRules,
			CumulativeNewCategoryCount: cumulative,
		})
	}
	return out
}
