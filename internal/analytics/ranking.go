package analytics

import (
	"fmt"
	"sort"
	"strings"

	"bicdash/internal/core"
)

// DefaultTopN is the ranking size used by the dashboards.
const DefaultTopN = 10

// Dimension selects the grouping key.
type Dimension string

const (
	ByCategory Dimension = "category"
	ByAccount  Dimension = "account"
)

// Metric selects the ranking measure.
type Metric string

const (
	ByCount     Metric = "count"
	ByTotalFine Metric = "total_fine"
)

// ParseDimension accepts "category" or "account", case-insensitively.
// An empty string selects ByCategory.
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(strings.ToLower(strings.TrimSpace(s))) {
	case "", ByCategory:
		return ByCategory, nil
	case ByAccount:
		return ByAccount, nil
	}
	return "", fmt.Errorf("unknown dimension %q (want %s or %s)", s, ByCategory, ByAccount)
}

// ParseMetric accepts "count" or "total_fine", case-insensitively.
// An empty string selects ByCount.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", ByCount:
		return ByCount, nil
	case ByTotalFine:
		return ByTotalFine, nil
	}
	return "", fmt.Errorf("unknown metric %q (want %s or %s)", s, ByCount, ByTotalFine)
}

// Key returns the group name of r under d.
func (d Dimension) Key(r Record) string {
	if d == ByAccount {
		return r.Account
	}
	return r.Label
}

// RankedRow is one entry of a top-N ranking.
type RankedRow struct {
	Name      string     `json:"name"`
	Count     int        `json:"count"`
	TotalFine core.Money `json:"total_fine"`
}

func (r RankedRow) value(m Metric) int64 {
	if m == ByTotalFine {
		return r.TotalFine.Cents
	}
	return int64(r.Count)
}

// TopNBy ranks groups by metric descending, ties by name ascending.
// n <= 0 returns every group.
func TopNBy(records []Record, dim Dimension, metric Metric, n int) []RankedRow {
	idx := map[string]int{}
	rows := []RankedRow{}
	for _, r := range records {
		k := dim.Key(r)
		i, ok := idx[k]
		if !ok {
			i = len(rows)
			idx[k] = i
			rows = append(rows, RankedRow{Name: k})
		}
		rows[i].Count++
		rows[i].TotalFine.Cents += r.Fine.Money.Cents
	}
	sort.Slice(rows, func(i, j int) bool {
		vi, vj := rows[i].value(metric), rows[j].value(metric)
		if vi != vj {
			return vi > vj
		}
		return rows[i].Name < rows[j].Name
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// Names returns the group names of rows in rank order.
func Names(rows []RankedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

// Restrict keeps the records whose group under dim is one of keys.
func Restrict(records []Record, dim Dimension, keys []string) []Record {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := want[dim.Key(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ShareResult compares a selection of groups with the whole record set.
type ShareResult struct {
	Count        int        `json:"count"`
	TotalFine    core.Money `json:"total_fine"`
	AllCount     int        `json:"all_count"`
	AllFine      core.Money `json:"all_fine"`
	CountPercent float64    `json:"count_percent"`
	FinePercent  float64    `json:"fine_percent"`
}

// Share reports how much of the whole the groups in keys account for.
// Empty denominators yield 0%.
func Share(records []Record, dim Dimension, keys []string) ShareResult {
	var s ShareResult
	for _, r := range records {
		s.AllCount++
		s.AllFine.Cents += r.Fine.Money.Cents
	}
	for _, r := range Restrict(records, dim, keys) {
		s.Count++
		s.TotalFine.Cents += r.Fine.Money.Cents
	}
	s.CountPercent = percent(float64(s.Count), float64(s.AllCount))
	s.FinePercent = percent(float64(s.TotalFine.Cents), float64(s.AllFine.Cents))
	return s
}
