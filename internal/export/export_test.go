package export

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bicdash/internal/analytics"
	"bicdash/internal/core"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)
	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	assert.Equal(t, XLSX, FormatFromPath("out/top.XLSX"))
	assert.Equal(t, CSV, FormatFromPath("out/top"))
}

func TestWriteCSV(t *testing.T) {
	rows := []analytics.CorrelationRow{
		{Key: "A", Years: 3, Coefficient: -1, Valid: true},
		{Key: "B", Years: 1, Coefficient: math.NaN()},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, CorrelationTable(analytics.ByAccount, rows)))
	assert.Equal(t, "account,years,coefficient\nA,3,-1\nB,1,\n", buf.String())
}

func TestWriteCSVMoney(t *testing.T) {
	var buf bytes.Buffer
	tbl := RankingTable(analytics.ByCategory, []analytics.RankedRow{{Name: "Ownership not filed", Count: 2, TotalFine: core.Money{Cents: 125050}}})
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "category,count,total_fine\nOwnership not filed,2,1250.50\n", buf.String())

	assert.Error(t, Write(&buf, CSV, tbl, tbl))
}

func TestWriteText(t *testing.T) {
	tbl := Table{
		Header: []string{"label", "count"},
		Rows:   [][]any{{"Late filing", 2}, {"X", 10}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, tbl))
	assert.Equal(t, "label        count\nLate filing  2\nX            10\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	summary := SummaryTable(analytics.Summary{TotalCount: 3, TotalFine: core.Money{Cents: 150000}})
	agg := AggregateTable("Accounts by year", analytics.ByAccount, true, []analytics.AggregateRow{
		{Key: analytics.GroupKey{Name: "Acme", Year: 2020}, Count: 1, TotalFine: core.Money{Cents: 50000}},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, summary, agg))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Accounts by year"}, f.GetSheetList())

	v, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "1500", v)

	rows, err := f.GetRows("Accounts by year")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"account", "year", "count", "total_fine", "mean_fine", "median_fine", "min_fine", "max_fine", "sample"}, rows[0])
	assert.Equal(t, "Acme", rows[1][0])
	assert.Equal(t, "2020", rows[1][1])

	assert.Error(t, WriteXLSX(&buf))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Table2", sheetName("", 1))
	assert.Equal(t, "a b", sheetName("a/b", 0))
	assert.Len(t, []rune(sheetName("a very long sheet name that Excel would reject", 0)), 31)
}

func TestExclusionsAndRecords(t *testing.T) {
	e := ExclusionsTable("Excluded", core.Exclusions{core.ReasonMissingFine: 2, core.ReasonBeforeCutoff: 5})
	assert.Equal(t, [][]any{{"before_cutoff", 5}, {"missing_fine", 2}}, e.Rows)

	r := RecordsTable([]analytics.Record{{
		Violation: core.Violation{Date: core.NewDate(2020, 2, 3), Account: "Acme", Rule: "x", Fine: core.NewFine(500)},
		Label:     "x...",
		Year:      2020,
	}})
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r))
	assert.Contains(t, buf.String(), "2020-02-03,2020,Acme,x...,x,5.00")
}
