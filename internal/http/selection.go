package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"bicdash/internal/analytics"
	"bicdash/internal/export"
)

// maxTopN bounds the n parameter so one request cannot ask for an unbounded
// ranking table.
const maxTopN = 1000

// Selection is the dashboard state of one request: year range, grouping,
// ranking metric and size. It is parsed per request and never shared.
type Selection struct {
	// From and To bound the year range inclusively; zero is open.
	From      int
	To        int
	Dimension analytics.Dimension
	Metric    analytics.Metric
	// N limits rankings; zero keeps every group.
	N      int
	ByYear bool
	// Format is empty for JSON responses.
	Format export.Format
}

// SelectionError lists every invalid query parameter.
type SelectionError struct {
	Problems []string
}

func (e *SelectionError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// ParseSelection reads the selection from query parameters:
// from, to, dimension, metric, n, by_year and format.
func ParseSelection(q url.Values) (Selection, error) {
	sel := Selection{
		Dimension: analytics.ByCategory,
		Metric:    analytics.ByCount,
		N:         analytics.DefaultTopN,
	}
	var problems []string

	year := func(name string) int {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			return 0
		}
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			problems = append(problems, fmt.Sprintf("%s must be a positive year", name))
			return 0
		}
		return y
	}
	sel.From = year("from")
	sel.To = year("to")
	if sel.From != 0 && sel.To != 0 && sel.From > sel.To {
		problems = append(problems, "from must not be after to")
	}

	if d, err := analytics.ParseDimension(q.Get("dimension")); err != nil {
		problems = append(problems, err.Error())
	} else {
		sel.Dimension = d
	}
	if m, err := analytics.ParseMetric(q.Get("metric")); err != nil {
		problems = append(problems, err.Error())
	} else {
		sel.Metric = m
	}

	if v := strings.TrimSpace(q.Get("n")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxTopN {
			problems = append(problems, fmt.Sprintf("n must be an integer between 0 and %d", maxTopN))
		} else {
			sel.N = n
		}
	}

	if v := strings.TrimSpace(q.Get("by_year")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, "by_year must be true or false")
		} else {
			sel.ByYear = b
		}
	}

	switch v := strings.TrimSpace(q.Get("format")); strings.ToLower(v) {
	case "", "json":
	default:
		f, err := export.ParseFormat(v)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			sel.Format = f
		}
	}

	if len(problems) > 0 {
		return Selection{}, &SelectionError{Problems: problems}
	}
	return sel, nil
}

// Records applies the year range to a snapshot's violations.
func (s Selection) Records(ds *analytics.Dataset) []analytics.Record {
	return analytics.FilterYears(ds.Violations, s.From, s.To)
}

// topKeys returns the names of the N highest ranked groups under the
// selection's dimension and metric.
func (s Selection) topKeys(records []analytics.Record) []string {
	return analytics.Names(analytics.TopNBy(records, s.Dimension, s.Metric, s.N))
}

func selectionProblems(err error) []string {
	var se *SelectionError
	if errors.As(err, &se) {
		return se.Problems
	}
	return []string{err.Error()}
}
