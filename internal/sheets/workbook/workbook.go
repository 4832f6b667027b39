// Package workbook reads and appends the BIC datasets in a local XLSX file.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"bicdash/internal/core"
	ports "bicdash/internal/sheets"
	"bicdash/internal/tabular"
)

var (
	_ ports.Source          = (*Workbook)(nil)
	_ ports.ViolationWriter = (*Workbook)(nil)
)

// Workbook is an XLSX file with one tab per dataset. The file is reopened
// on every call so edits made outside the process are picked up.
type Workbook struct {
	mu              sync.Mutex
	path            string
	violationsSheet string
	complaintsSheet string
}

// Open checks that path exists and returns a Workbook over it.
func Open(path, violationsSheet, complaintsSheet string) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("workbook: %w", err)
	}
	if violationsSheet == "" {
		violationsSheet = "Violations"
	}
	if complaintsSheet == "" {
		complaintsSheet = "Complaints"
	}
	return &Workbook{path: path, violationsSheet: violationsSheet, complaintsSheet: complaintsSheet}, nil
}

// ListViolations reads the violations tab.
func (w *Workbook) ListViolations(ctx context.Context) (tabular.Violations, error) {
	rows, err := w.rows(ctx, w.violationsSheet)
	if err != nil {
		return tabular.Violations{}, err
	}
	return tabular.ParseViolations(rows)
}

// ListComplaints reads the complaints tab. A workbook without one yields an
// empty table.
func (w *Workbook) ListComplaints(ctx context.Context) (tabular.Complaints, error) {
	rows, err := w.rows(ctx, w.complaintsSheet)
	if errors.Is(err, errNoSheet) {
		return tabular.Complaints{}, nil
	}
	if err != nil {
		return tabular.Complaints{}, err
	}
	return tabular.ParseComplaints(rows)
}

// AppendViolation writes v on the first empty row of the violations tab.
func (w *Workbook) AppendViolation(ctx context.Context, v core.Violation) (string, error) {
	if err := v.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(w.violationsSheet); idx < 0 {
		if _, err := f.NewSheet(w.violationsSheet); err != nil {
			return "", fmt.Errorf("create sheet: %w", err)
		}
	}
	rows, err := f.GetRows(w.violationsSheet)
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", w.violationsSheet, err)
	}
	next := len(rows) + 1
	if len(rows) == 0 {
		if err := setRow(f, w.violationsSheet, 1, tabular.ViolationHeader); err != nil {
			return "", err
		}
		next = 2
	}
	if err := setRow(f, w.violationsSheet, next, tabular.ViolationRow(v)); err != nil {
		return "", err
	}
	if err := f.Save(); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return fmt.Sprintf("%s!A%d", w.violationsSheet, next), nil
}

var errNoSheet = errors.New("sheet not found")

func (w *Workbook) rows(ctx context.Context, sheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%w: %s", errNoSheet, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
