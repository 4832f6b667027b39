package analytics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bicdash/internal/core"
	"bicdash/internal/labels"
)

func violation(date, account, rule string, dollars int64) core.Violation {
	return core.Violation{
		Date:    core.MustParseDate(date),
		Account: account,
		Rule:    rule,
		Fine:    core.NewFine(dollars * 100),
	}
}

func sampleRecords(t *testing.T) []Record {
	t.Helper()
	ds := Prepare([]core.Violation{
		violation("2015-03-01", "A", "no trade waste license", 500),
		violation("2016-06-01", "A", "no trade waste license", 750),
		violation("2016-07-01", "B", "failed to provide off-street parking", 250),
	}, nil, DefaultCutoffYear, nil)
	require.Len(t, ds.Violations, 3)
	return ds.Violations
}

func TestEndToEnd(t *testing.T) {
	recs := sampleRecords(t)

	s := SummaryStats(recs)
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, int64(150000), s.TotalFine.Cents)
	assert.Equal(t, int64(50000), s.MeanFine.Cents)
	assert.Equal(t, int64(50000), s.MedianFine.Cents)
	assert.Equal(t, int64(75000), s.MaxFine.Cents)
	assert.Equal(t, int64(25000), s.MinPositiveFine.Cents)
	assert.Equal(t, 2, s.DistinctAccountCount)
	assert.InDelta(t, 1.5, s.MeanViolationsPerAccount, 1e-9)
	assert.Equal(t, int64(75000), s.MeanFinePerAccount.Cents)

	top := TopNBy(recs, ByAccount, ByTotalFine, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "A", top[0].Name)
	assert.Equal(t, int64(125000), top[0].TotalFine.Cents)
}

func TestPrepareExclusions(t *testing.T) {
	noFine := violation("2016-01-01", "A", "x", 1)
	noFine.Fine = core.NullMoney{}
	noAccount := violation("2016-01-01", "", "x", 1)
	noDate := violation("2016-01-01", "A", "x", 1)
	noDate.Date = core.Date{}

	ds := Prepare([]core.Violation{
		violation("2014-12-31", "A", "old", 100),
		violation("2015-01-01", "A", "", 100),
		noFine, noAccount, noDate,
	}, []core.Complaint{
		{Date: core.NewDate(2014, 5, 1)},
		{Date: core.NewDate(2018, 5, 1)},
		{},
	}, 2015, labels.Default())

	require.Len(t, ds.Violations, 1)
	assert.Equal(t, labels.Unknown, ds.Violations[0].Label)
	assert.Equal(t, 2015, ds.Violations[0].Year)
	assert.Equal(t, core.Exclusions{
		core.ReasonBeforeCutoff:   1,
		core.ReasonMissingFine:    1,
		core.ReasonMissingAccount: 1,
		core.ReasonMissingDate:    1,
	}, ds.Excluded)
	assert.Len(t, ds.Complaints, 1)
	assert.Equal(t, 2, ds.ExcludedComplaints.Total())
	assert.Equal(t, []int{2015, 2018}, ds.Years())
}

func TestPartition(t *testing.T) {
	recs := sampleRecords(t)
	recs = append(recs, Prepare([]core.Violation{
		violation("2017-01-01", "C", "Unreported change of ownership", 0),
		violation("2017-02-01", "C", "UNREPORTED CHANGE OF OWNERSHIP ", 300),
		violation("2018-02-01", "D", "", 10),
	}, nil, 2015, nil).Violations...)

	total := 0
	for _, row := range TopNBy(recs, ByCategory, ByCount, 0) {
		total += row.Count
	}
	assert.Equal(t, len(recs), total)

	total = 0
	for _, row := range Aggregate(recs, ByAccount, true) {
		total += row.Count
	}
	assert.Equal(t, len(recs), total)
}

func TestSummaryStatsEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, SummaryStats(nil))
	assert.NotPanics(t, func() { SummaryStats([]Record{}) })
}

func TestSummaryZeroFines(t *testing.T) {
	recs := Prepare([]core.Violation{
		violation("2016-01-01", "A", "x", 0),
		violation("2016-01-02", "A", "x", 0),
	}, nil, 2015, nil).Violations
	s := SummaryStats(recs)
	assert.Equal(t, 2, s.TotalCount)
	assert.Equal(t, int64(0), s.MinPositiveFine.Cents)
	assert.Equal(t, int64(0), s.MeanFine.Cents)
}

func TestMedianEvenCount(t *testing.T) {
	assert.Equal(t, int64(2), medianCents([]int64{4, 1}).Cents)
	assert.Equal(t, int64(3), medianCents([]int64{1, 2, 3, 4}).Cents)
	assert.Equal(t, int64(5), medianCents([]int64{9, 5, 1}).Cents)
	assert.Equal(t, int64(0), medianCents(nil).Cents)
}

func TestYearlyTrend(t *testing.T) {
	recs := Prepare([]core.Violation{
		violation("2015-05-01", "A", "rule one", 100),
		violation("2016-05-01", "A", "rule one", 300),
		violation("2016-02-01", "B", "rule two", 200),
		violation("2018-02-01", "B", "rule three", 200),
		violation("2018-03-01", "B", "", 200),
	}, nil, 2015, nil).Violations
	complaints := []core.Complaint{
		{Date: core.NewDate(2015, 1, 1)},
		{Date: core.NewDate(2017, 1, 1)},
		{Date: core.NewDate(2017, 2, 1)},
	}

	got := YearlyTrend(recs, complaints)
	require.Len(t, got, 4)
	assert.Equal(t, []int{2015, 2016, 2017, 2018}, []int{got[0].Year, got[1].Year, got[2].Year, got[3].Year})

	assert.Equal(t, TrendPoint{Year: 2015, ComplaintCount: 1, ViolationCount: 1, AverageFine: core.Money{Cents: 10000}, NewCategoryCount: 1, CumulativeNewCategoryCount: 1}, got[0])
	assert.Equal(t, 2, got[1].ViolationCount)
	assert.Equal(t, int64(25000), got[1].AverageFine.Cents)
	assert.Equal(t, 1, got[1].NewCategoryCount)
	assert.Equal(t, 2, got[2].ComplaintCount)
	assert.Equal(t, 0, got[2].ViolationCount)
	assert.Equal(t, int64(0), got[2].AverageFine.Cents)
	assert.Equal(t, 2, got[2].CumulativeNewCategoryCount)
	assert.Equal(t, 3, got[3].CumulativeNewCategoryCount)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].CumulativeNewCategoryCount, got[i-1].CumulativeNewCategoryCount)
	}
}

func TestTopNByTies(t *testing.T) {
	recs := Prepare([]core.Violation{
		violation("2016-01-01", "zeta", "x", 100),
		violation("2016-01-01", "alpha", "x", 100),
		violation("2016-01-01", "mid", "x", 50),
		violation("2016-01-01", "mid", "x", 50),
	}, nil, 2015, nil).Violations

	byFine := TopNBy(recs, ByAccount, ByTotalFine, 0)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, Names(byFine))

	byCount := TopNBy(recs, ByAccount, ByCount, 2)
	assert.Equal(t, []string{"mid", "alpha"}, Names(byCount))

	assert.Empty(t, TopNBy(nil, ByCategory, ByCount, DefaultTopN))
}

func TestParseDimensionMetric(t *testing.T) {
	d, err := ParseDimension("Account")
	require.NoError(t, err)
	assert.Equal(t, ByAccount, d)
	d, err = ParseDimension("")
	require.NoError(t, err)
	assert.Equal(t, ByCategory, d)
	_, err = ParseDimension("year")
	assert.Error(t, err)

	m, err := ParseMetric("total_fine")
	require.NoError(t, err)
	assert.Equal(t, ByTotalFine, m)
	_, err = ParseMetric("avg")
	assert.Error(t, err)
}

func TestAggregate(t *testing.T) {
	recs := Prepare([]core.Violation{
		violation("2016-01-01", "A", "Failed to provide off-street parking at yard", 100),
		violation("2016-03-01", "B", "failed to provide off-street parking", 0),
		violation("2017-01-01", "B", "failed to provide off-street parking", 400),
		violation("2017-01-01", "C", "unreported change of ownership", 50),
	}, nil, 2015, nil).Violations

	rows := Aggregate(recs, ByCategory, false)
	require.Len(t, rows, 2)
	park := rows[0]
	assert.Equal(t, GroupKey{Name: "Failed to provide off-street parking"}, park.Key)
	assert.Equal(t, 3, park.Count)
	assert.Equal(t, int64(50000), park.TotalFine.Cents)
	assert.Equal(t, int64(16667), park.MeanFine.Cents)
	assert.Equal(t, int64(10000), park.MedianFine.Cents)
	assert.Equal(t, int64(0), park.MinFine.Cents)
	assert.Equal(t, int64(40000), park.MaxFine.Cents)
	assert.Equal(t, "Failed to provide off-street parking at yard", park.Sample)

	byYear := Aggregate(recs, ByAccount, true)
	require.Len(t, byYear, 4)
	assert.Equal(t, GroupKey{Name: "A", Year: 2016}, byYear[0].Key)
	assert.Equal(t, GroupKey{Name: "B", Year: 2016}, byYear[1].Key)
	assert.Equal(t, GroupKey{Name: "B", Year: 2017}, byYear[2].Key)

	assert.Empty(t, Aggregate(nil, ByAccount, false))
}

func TestShareAndRestrict(t *testing.T) {
	recs := sampleRecords(t)
	s := Share(recs, ByAccount, []string{"A"})
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 3, s.AllCount)
	assert.InDelta(t, 66.666, s.CountPercent, 0.01)
	assert.InDelta(t, 83.333, s.FinePercent, 0.01)

	assert.Len(t, Restrict(recs, ByAccount, []string{"B", "missing"}), 1)

	empty := Share(nil, ByAccount, []string{"A"})
	assert.Equal(t, 0.0, empty.CountPercent)
	assert.Equal(t, 0.0, empty.FinePercent)
}

func TestFilterYears(t *testing.T) {
	recs := sampleRecords(t)
	assert.Len(t, FilterYears(recs, 2016, 2016), 2)
	assert.Len(t, FilterYears(recs, 0, 2015), 1)
	assert.Len(t, FilterYears(recs, 0, 0), 3)
	assert.Empty(t, FilterYears(recs, 2020, 0))
}

func TestCorrelation(t *testing.T) {
	recs := Prepare([]core.Violation{
		// A: fines rise while counts fall, a perfect negative relation.
		violation("2015-01-01", "A", "x", 100),
		violation("2015-02-01", "A", "x", 100),
		violation("2015-03-01", "A", "x", 100),
		violation("2016-01-01", "A", "x", 200),
		violation("2016-02-01", "A", "x", 200),
		violation("2017-01-01", "A", "x", 300),
		// B: one year only.
		violation("2016-01-01", "B", "x", 100),
		// C: constant average fine.
		violation("2016-01-01", "C", "x", 100),
		violation("2017-01-01", "C", "x", 100),
		violation("2017-02-01", "C", "x", 100),
	}, nil, 2015, nil).Violations

	rows := Correlation(recs, ByAccount)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].Key)
	assert.True(t, rows[0].Valid)
	assert.Equal(t, 3, rows[0].Years)
	assert.InDelta(t, -1.0, rows[0].Coefficient, 1e-9)

	assert.False(t, rows[1].Valid)
	assert.True(t, math.IsNaN(rows[1].Coefficient))
	assert.False(t, rows[2].Valid)

	b, err := json.Marshal(rows[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"B","years":1,"coefficient":null,"valid":false}`, string(b))
}
