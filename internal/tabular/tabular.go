// Package tabular turns header-addressed rows (CSV files, sheet ranges,
// workbook tabs) into domain violations and complaints.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"bicdash/internal/core"
)

// Column headers of the BIC open-data exports.
const (
	ColViolationDate = "DATE VIOLATION ISSUED"
	ColAccountName   = "ACCOUNT NAME"
	ColRule          = "DESCRIPTION OF RULE"
	ColFineAmount    = "FINE AMOUNT"
	ColComplaintDate = "DATE COMPLAINT/INQUIRY REPORTED ON"
)

// ViolationHeader is the column order used when writing violations.
var ViolationHeader = []string{ColViolationDate, ColAccountName, ColRule, ColFineAmount}

// ComplaintHeader is the column order used when writing complaints.
var ComplaintHeader = []string{ColComplaintDate}

var ErrMissingColumn = errors.New("missing column")

// Violations is the outcome of parsing a violations table.
type Violations struct {
	Rows     []core.Violation
	Read     int
	Excluded core.Exclusions
}

// Complaints is the outcome of parsing a complaints table.
type Complaints struct {
	Rows     []core.Complaint
	Read     int
	Excluded core.Exclusions
}

// header maps normalized column names to indexes.
type header map[string]int

func newHeader(row []string) header {
	h := make(header, len(row))
	for i, name := range row {
		key := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}
	return h
}

func (h header) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseViolations reads a table whose first row is the header. Rows with an
// unparseable date or amount are dropped and counted; rows with empty cells
// are kept so preparation can account for them.
func ParseViolations(rows [][]string) (Violations, error) {
	out := Violations{Excluded: core.Exclusions{}}
	if len(rows) == 0 {
		return out, fmt.Errorf("%w: empty table", ErrMissingColumn)
	}
	h := newHeader(rows[0])
	if err := h.require(ViolationHeader...); err != nil {
		return out, err
	}
	out.Rows = make([]core.Violation, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		out.Read++
		v := core.Violation{
			Account: h.get(row, ColAccountName),
			Rule:    h.get(row, ColRule),
		}
		d, err := core.ParseDate(h.get(row, ColViolationDate))
		if errors.Is(err, core.ErrUnparseableDate) {
			out.Excluded.Add(core.ReasonUnparseableDate)
			continue
		}
		v.Date = d
		fine, err := core.ParseFine(h.get(row, ColFineAmount))
		if err != nil {
			out.Excluded.Add(core.ReasonInvalidFine)
			continue
		}
		v.Fine = fine
		out.Rows = append(out.Rows, v)
	}
	return out, nil
}

// ParseComplaints reads a complaints table whose first row is the header.
func ParseComplaints(rows [][]string) (Complaints, error) {
	out := Complaints{Excluded: core.Exclusions{}}
	if len(rows) == 0 {
		return out, fmt.Errorf("%w: empty table", ErrMissingColumn)
	}
	h := newHeader(rows[0])
	if err := h.require(ComplaintHeader...); err != nil {
		return out, err
	}
	out.Rows = make([]core.Complaint, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		out.Read++
		d, err := core.ParseDate(h.get(row, ColComplaintDate))
		if errors.Is(err, core.ErrUnparseableDate) {
			out.Excluded.Add(core.ReasonUnparseableDate)
			continue
		}
		out.Rows = append(out.Rows, core.Complaint{Date: d})
	}
	return out, nil
}

// ViolationRow renders v in ViolationHeader order.
func ViolationRow(v core.Violation) []string {
	fine := ""
	if v.Fine.Valid {
		fine = v.Fine.Money.DecimalString()
	}
	return []string{v.Date.String(), v.Account, v.Rule, fine}
}

// ReadCSV reads every record of a CSV stream. Ragged rows are allowed.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// WriteCSV writes header and rows to w.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
