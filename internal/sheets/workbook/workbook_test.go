package workbook

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bicdash/internal/core"
)

func createWorkbook(t *testing.T, withComplaints bool) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Violations"
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	rows := [][]interface{}{
		{"DATE VIOLATION ISSUED", "ACCOUNT NAME", "DESCRIPTION OF RULE", "FINE AMOUNT"},
		{"03/01/2016", "Acme", "failed to provide off-street parking", "500"},
		{"04/01/2017", "Beta", "unreported change of ownership", "1,000.00"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	if withComplaints {
		_, err := f.NewSheet("Complaints")
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Complaints", "A1", "DATE COMPLAINT/INQUIRY REPORTED ON"))
		require.NoError(t, f.SetCellValue("Complaints", "A2", "2016-05-05"))
	}

	path := filepath.Join(t.TempDir(), "bic.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestWorkbookRead(t *testing.T) {
	wb, err := Open(createWorkbook(t, true), "", "")
	require.NoError(t, err)

	vs, err := wb.ListViolations(context.Background())
	require.NoError(t, err)
	require.Len(t, vs.Rows, 2)
	assert.Equal(t, core.NewFine(100000), vs.Rows[1].Fine)

	cs, err := wb.ListComplaints(context.Background())
	require.NoError(t, err)
	assert.Len(t, cs.Rows, 1)
}

func TestWorkbookWithoutComplaints(t *testing.T) {
	wb, err := Open(createWorkbook(t, false), "", "")
	require.NoError(t, err)
	cs, err := wb.ListComplaints(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cs.Rows)
}

func TestWorkbookAppend(t *testing.T) {
	wb, err := Open(createWorkbook(t, false), "", "")
	require.NoError(t, err)

	ref, err := wb.AppendViolation(context.Background(), core.Violation{
		Date: core.NewDate(2020, 1, 2), Account: "Gamma", Rule: "x", Fine: core.NewFine(1234),
	})
	require.NoError(t, err)
	assert.Equal(t, "Violations!A4", ref)

	vs, err := wb.ListViolations(context.Background())
	require.NoError(t, err)
	require.Len(t, vs.Rows, 3)
	assert.Equal(t, "Gamma", vs.Rows[2].Account)
	assert.Equal(t, int64(1234), vs.Rows[2].Fine.Money.Cents)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xlsx"), "", "")
	assert.Error(t, err)
}
