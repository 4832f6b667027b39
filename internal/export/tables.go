// Package export turns derived tables into CSV or XLSX files.
package export

import (
	"math"
	"strconv"

	"bicdash/internal/analytics"
	"bicdash/internal/core"
)

// Table is a named grid of cells. Cells hold string, int, float64 or
// core.Money values; a NaN float is written as an empty cell.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

func SummaryTable(s analytics.Summary) Table {
	return Table{
		Name:   "Summary",
		Header: []string{"metric", "value"},
		Rows: [][]any{
			{"total_count", s.TotalCount},
			{"total_fine", s.TotalFine},
			{"mean_fine", s.MeanFine},
			{"median_fine", s.MedianFine},
			{"max_fine", s.MaxFine},
			{"min_positive_fine", s.MinPositiveFine},
			{"distinct_account_count", s.DistinctAccountCount},
			{"mean_violations_per_account", s.MeanViolationsPerAccount},
			{"mean_fine_per_account", s.MeanFinePerAccount},
		},
	}
}

func TrendTable(points []analytics.TrendPoint) Table {
	t := Table{
		Name:   "Trend",
		Header: []string{"year", "complaint_count", "violation_count", "average_fine", "new_category_count", "cumulative_new_category_count"},
	}
	for _, p := range points {
		t.Rows = append(t.Rows, []any{p.Year, p.ComplaintCount, p.ViolationCount, p.AverageFine, p.NewCategoryCount, p.CumulativeNewCategoryCount})
	}
	return t
}

func RankingTable(dim analytics.Dimension, rows []analytics.RankedRow) Table {
	t := Table{Name: "Top", Header: []string{string(dim), "count", "total_fine"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Name, r.Count, r.TotalFine})
	}
	return t
}

// AggregateTable includes a year column only when the rows are split by year.
func AggregateTable(name string, dim analytics.Dimension, byYear bool, rows []analytics.AggregateRow) Table {
	header := []string{string(dim)}
	if byYear {
		header = append(header, "year")
	}
	header = append(header, "count", "total_fine", "mean_fine", "median_fine", "min_fine", "max_fine", "sample")
	t := Table{Name: name, Header: header}
	for _, r := range rows {
		row := []any{r.Key.Name}
		if byYear {
			row = append(row, r.Key.Year)
		}
		row = append(row, r.Count, r.TotalFine, r.MeanFine, r.MedianFine, r.MinFine, r.MaxFine, r.Sample)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func CorrelationTable(dim analytics.Dimension, rows []analytics.CorrelationRow) Table {
	t := Table{Name: "Correlation", Header: []string{string(dim), "years", "coefficient"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Key, r.Years, r.Coefficient})
	}
	return t
}

// RecordsTable lists prepared violations with their derived label.
func RecordsTable(records []analytics.Record) Table {
	t := Table{Name: "Records", Header: []string{"date", "year", "account_name", "label", "rule_description", "fine_amount"}}
	for _, r := range records {
		t.Rows = append(t.Rows, []any{r.Date.String(), r.Year, r.Account, r.Label, r.Rule, r.Fine.Money})
	}
	return t
}

// ExclusionsTable lists dropped-row counts per reason.
func ExclusionsTable(name string, e core.Exclusions) Table {
	t := Table{Name: name, Header: []string{"reason", "rows"}}
	for _, r := range e.Reasons() {
		t.Rows = append(t.Rows, []any{string(r), e[r]})
	}
	return t
}

// text renders a cell for CSV.
func text(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return ""
		}
		return strconv.FormatFloat(c, 'f', -1, 64)
	case core.Money:
		return c.DecimalString()
	default:
		return ""
	}
}

// value renders a cell for a spreadsheet, keeping numbers numeric.
func value(v any) any {
	switch c := v.(type) {
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil
		}
		return c
	case core.Money:
		return c.Dollars()
	default:
		return v
	}
}
