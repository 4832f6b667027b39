package analytics

import (
	"sort"

	"bicdash/internal/core"
)

// GroupKey identifies a group. Year is 0 when rows are not split by year.
type GroupKey struct {
	Name string `json:"name"`
	Year int    `json:"year,omitempty"`
}

// AggregateRow is the reduced form of one group.
type AggregateRow struct {
	Key        GroupKey   `json:"key"`
	Count      int        `json:"count"`
	TotalFine  core.Money `json:"total_fine"`
	MeanFine   core.Money `json:"mean_fine"`
	MedianFine core.Money `json:"median_fine"`
	MinFine    core.Money `json:"min_fine"`
	MaxFine    core.Money `json:"max_fine"`
	// Sample is the first raw rule description seen in the group.
	Sample string `json:"sample,omitempty"`
}

// Aggregate groups records by dim, and by year too when byYear is set.
//
// Without byYear rows are ordered by count descending then name; with
// byYear they are ordered by name then year.
func Aggregate(records []Record, dim Dimension, byYear bool) []AggregateRow {
	type group struct {
		row   AggregateRow
		cents []int64
	}
	idx := map[GroupKey]*group{}
	order := []*group{}
	for _, r := range records {
		k := GroupKey{Name: dim.Key(r)}
		if byYear {
			k.Year = r.Year
		}
		g, ok := idx[k]
		c := r.Fine.Money.Cents
		if !ok {
			g = &group{row: AggregateRow{Key: k, Sample: r.Rule}}
			g.row.MinFine.Cents = c
			idx[k] = g
			order = append(order, g)
		}
		g.row.Count++
		g.row.TotalFine.Cents += c
		if c < g.row.MinFine.Cents {
			g.row.MinFine.Cents = c
		}
		if c > g.row.MaxFine.Cents {
			g.row.MaxFine.Cents = c
		}
		g.cents = append(g.cents, c)
	}

	out := make([]AggregateRow, 0, len(order))
	for _, g := range order {
		g.row.MeanFine = meanCents(g.row.TotalFine.Cents, g.row.Count)
		g.row.MedianFine = medianCents(g.cents)
		out = append(out, g.row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if byYear {
			if a.Key.Name != b.Key.Name {
				return a.Key.Name < b.Key.Name
			}
			return a.Key.Year < b.Key.Year
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Key.Name < b.Key.Name
	})
	return out
}
