package analytics

import (
	"encoding/json"
	"sort"
)

// CorrelationRow is the Pearson coefficient between a group's yearly
// average fine and its yearly violation count.
type CorrelationRow struct {
	Key         string  `json:"key"`
	Years       int     `json:"years"`
	Coefficient float64 `json:"coefficient"`
	// Valid is false when the group has fewer than two years or no variance;
	// Coefficient is then NaN.
	Valid bool `json:"valid"`
}

// MarshalJSON writes a null coefficient for invalid rows.
func (c CorrelationRow) MarshalJSON() ([]byte, error) {
	type row struct {
		Key         string   `json:"key"`
		Years       int      `json:"years"`
		Coefficient *float64 `json:"coefficient"`
		Valid       bool     `json:"valid"`
	}
	out := row{Key: c.Key, Years: c.Years, Valid: c.Valid}
	if c.Valid {
		v := c.Coefficient
		out.Coefficient = &v
	}
	return json.Marshal(out)
}

// Correlation computes one row per group under dim, sorted by key.
func Correlation(records []Record, dim Dimension) []CorrelationRow {
	yearly := Aggregate(records, dim, true)
	series := map[string][][2]float64{}
	for _, row := range yearly {
		series[row.Key.Name] = append(series[row.Key.Name], [2]float64{
			float64(row.TotalFine.Cents) / float64(row.Count),
			float64(row.Count),
		})
	}
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]CorrelationRow, 0, len(keys))
	for _, k := range keys {
		pts := series[k]
		xs := make([]float64, len(pts))
		ys := make([]float64, len(pts))
		for i, p := range pts {
			xs[i], ys[i] = p[0], p[1]
		}
		r, ok := pearson(xs, ys)
		out = append(out, CorrelationRow{Key: k, Years: len(pts), Coefficient: r, Valid: ok})
	}
	return out
}
