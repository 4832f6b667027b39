package analytics

import "bicdash/internal/core"

// Summary holds the headline figures of the overview page.
type Summary struct {
	TotalCount               int        `json:"total_count"`
	TotalFine                core.Money `json:"total_fine"`
	MeanFine                 core.Money `json:"mean_fine"`
	MedianFine               core.Money `json:"median_fine"`
	MaxFine                  core.Money `json:"max_fine"`
	MinPositiveFine          core.Money `json:"min_positive_fine"`
	DistinctAccountCount     int        `json:"distinct_account_count"`
	MeanViolationsPerAccount float64    `json:"mean_violations_per_account"`
	MeanFinePerAccount       core.Money `json:"mean_fine_per_account"`
}

// SummaryStats reduces records to a Summary. Zero fines count toward totals
// and means but never toward MinPositiveFine. Empty input yields all zeros.
func SummaryStats(records []Record) Summary {
	var s Summary
	if len(records) == 0 {
		return s
	}
	cents := make([]int64, 0, len(records))
	accounts := make(map[string]struct{})
	var minPos int64 = -1
	for _, r := range records {
		c := r.Fine.Money.Cents
		cents = append(cents, c)
		s.TotalFine.Cents += c
		if c > s.MaxFine.Cents {
			s.MaxFine.Cents = c
		}
		if c > 0 && (minPos < 0 || c < minPos) {
			minPos = c
		}
		accounts[r.Account] = struct{}{}
	}
	s.TotalCount = len(records)
	s.MeanFine = meanCents(s.TotalFine.Cents, s.TotalCount)
	s.MedianFine = medianCents(cents)
	if minPos > 0 {
		s.MinPositiveFine.Cents = minPos
	}
	s.DistinctAccountCount = len(accounts)
	if s.DistinctAccountCount > 0 {
		s.MeanViolationsPerAccount = float64(s.TotalCount) / float64(s.DistinctAccountCount)
		s.MeanFinePerAccount = meanCents(s.TotalFine.Cents, s.DistinctAccountCount)
	}
	return s
}
