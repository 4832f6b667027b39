package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bicdash/internal/core"
	"bicdash/internal/labels"
	applog "bicdash/internal/log"
	"bicdash/internal/metrics"
	"bicdash/internal/middleware/ratelimit"
	"bicdash/internal/services"
	ports "bicdash/internal/sheets"
	"bicdash/internal/sheets/memory"
)

const (
	ruleLate      = "Failed to timely notify Commission of a material information change"
	ruleOwnership = "Unreported change of ownership"
)

func fixture() *memory.Store {
	v := func(date, account, rule string, cents int64) core.Violation {
		return core.Violation{Date: core.MustParseDate(date), Account: account, Rule: rule, Fine: core.NewFine(cents)}
	}
	return memory.New(
		[]core.Violation{
			v("2019-03-01", "Acme Carting", ruleLate, 50000),
			v("2020-05-10", "Acme Carting", ruleOwnership, 100000),
			v("2020-06-01", "Bravo Waste", ruleLate, 25000),
			v("2021-01-15", "Bravo Waste", ruleOwnership, 0),
			v("2012-01-01", "Old Co", ruleLate, 10000),
			v("2020-01-01", "", ruleLate, 10000),
		},
		[]core.Complaint{
			{Date: core.MustParseDate("2019-01-01")},
			{Date: core.MustParseDate("2020-02-02")},
			{Date: core.MustParseDate("2020-03-03")},
		},
	)
}

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T, mutate func(*Deps)) testServer {
	t.Helper()
	store := fixture()
	deps := Deps{
		Datasets: services.NewDatasetService(store, services.DatasetConfig{}, nil),
		Writer:   store,
		Logger:   applog.New(applog.Config{Output: io.Discard}),
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{Server: srv, store: store}
}

func (ts testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (ts testServer) post(t *testing.T, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Summary struct {
			TotalCount           int     `json:"total_count"`
			TotalFine            float64 `json:"total_fine"`
			MinPositiveFine      float64 `json:"min_positive_fine"`
			DistinctAccountCount int     `json:"distinct_account_count"`
		} `json:"summary"`
		Years          []int          `json:"years"`
		CutoffYear     int            `json:"cutoff_year"`
		ViolationsRead int            `json:"violations_read"`
		Excluded       map[string]int `json:"excluded"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 4, body.Summary.TotalCount)
	assert.InDelta(t, 1750.0, body.Summary.TotalFine, 1e-9)
	assert.InDelta(t, 250.0, body.Summary.MinPositiveFine, 1e-9)
	assert.Equal(t, 2, body.Summary.DistinctAccountCount)
	assert.Equal(t, []int{2019, 2020, 2021}, body.Years)
	assert.Equal(t, 2015, body.CutoffYear)
	assert.Equal(t, 6, body.ViolationsRead)
	assert.Equal(t, map[string]int{"before_cutoff": 1, "missing_account": 1}, body.Excluded)

	rec = ts.get(t, "/api/summary?from=2020&to=2020")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 2, body.Summary.TotalCount)
}

func TestInvalidSelection(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/top?n=-1&dimension=zip&from=2021&to=2019")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "invalid query parameters", body.Error)
	assert.Len(t, body.Details, 3)
}

func TestTop(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/top?dimension=account&metric=total_fine")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rows []struct {
			Name      string  `json:"name"`
			Count     int     `json:"count"`
			TotalFine float64 `json:"total_fine"`
		} `json:"rows"`
		Share struct {
			CountPercent float64 `json:"count_percent"`
		} `json:"share"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "Acme Carting", body.Rows[0].Name)
	assert.InDelta(t, 1500.0, body.Rows[0].TotalFine, 1e-9)
	assert.InDelta(t, 100.0, body.Share.CountPercent, 1e-9)

	// Equal counts rank by name.
	rec = ts.get(t, "/api/top?n=1")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "Late update to Commission", body.Rows[0].Name)
	assert.InDelta(t, 50.0, body.Share.CountPercent, 1e-9)
}

func TestTopCSVExport(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/top?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="top_category.csv"`)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "category,count,total_fine\n"), rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Late update to Commission,2,750.00")
}

func TestSummaryXLSXExport(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/summary?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Excluded violations", "Excluded complaints"}, f.GetSheetList())

	v, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "4", v)
}

func TestTrend(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/trend?from=2020&to=2020")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Points []struct {
			Year           int `json:"year"`
			ComplaintCount int `json:"complaint_count"`
			ViolationCount int `json:"violation_count"`
		} `json:"points"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Points, 1)
	assert.Equal(t, 2020, body.Points[0].Year)
	assert.Equal(t, 2, body.Points[0].ComplaintCount)
	assert.Equal(t, 2, body.Points[0].ViolationCount)
}

func TestCategoriesByYear(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/categories?by_year=true&n=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ByYear bool `json:"by_year"`
		Rows   []struct {
			Key struct {
				Name string `json:"name"`
				Year int    `json:"year"`
			} `json:"key"`
			Count int `json:"count"`
		} `json:"rows"`
	}
	decode(t, rec, &body)
	assert.True(t, body.ByYear)
	require.Len(t, body.Rows, 2)
	for _, r := range body.Rows {
		assert.Equal(t, "Late update to Commission", r.Key.Name)
	}
	assert.Equal(t, 2019, body.Rows[0].Key.Year)
	assert.Equal(t, 2020, body.Rows[1].Key.Year)
}

func TestCorrelationNullWhenUndefined(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/correlation")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"coefficient":null`)
}

func TestAccountTimeseries(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/accounts/timeseries?n=1&metric=total_fine&dimension=category")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Accounts []string `json:"accounts"`
		Rows     []struct {
			Key struct {
				Name string `json:"name"`
				Year int    `json:"year"`
			} `json:"key"`
		} `json:"rows"`
	}
	decode(t, rec, &body)
	assert.Equal(t, []string{"Acme Carting"}, body.Accounts)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, 2019, body.Rows[0].Key.Year)
}

func TestRecords(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/records?from=2021")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count   int `json:"count"`
		Records []struct {
			Account string `json:"account_name"`
			Label   string `json:"label"`
		} `json:"records"`
	}
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Bravo Waste", body.Records[0].Account)
	assert.Equal(t, "Ownership not filed", body.Records[0].Label)
}

func TestLabels(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/labels?raw=Unreported+change+of+ownership+at+site")
	require.Equal(t, http.StatusOK, rec.Code)
	var one map[string]string
	decode(t, rec, &one)
	assert.Equal(t, "Ownership not filed", one["label"])

	rec = ts.get(t, "/api/labels?raw=")
	decode(t, rec, &one)
	assert.Equal(t, labels.Unknown, one["label"])

	rec = ts.get(t, "/api/labels")
	var all struct {
		Rules []labels.Rule `json:"rules"`
	}
	decode(t, rec, &all)
	assert.Len(t, all.Rules, len(labels.DefaultRules))
}

func TestCreateViolation(t *testing.T) {
	ts := newTestServer(t, nil)

	// Load the snapshot first so the write has something to invalidate.
	require.Equal(t, http.StatusOK, ts.get(t, "/api/summary").Code)

	rec := ts.post(t, "/api/violations", `{
		"date": "2022-04-01",
		"account_name": " Charlie Haulers ",
		"rule_description": "Unreported change of ownership",
		"fine_amount": "$1,250.00"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Ref        string  `json:"ref"`
		Label      string  `json:"label"`
		Account    string  `json:"account_name"`
		FineAmount float64 `json:"fine_amount"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "mem:7", created.Ref)
	assert.Equal(t, "Ownership not filed", created.Label)
	assert.Equal(t, "Charlie Haulers", created.Account)
	assert.InDelta(t, 1250.0, created.FineAmount, 1e-9)

	var summary struct {
		Summary struct {
			TotalCount int `json:"total_count"`
		} `json:"summary"`
	}
	decode(t, ts.get(t, "/api/summary"), &summary)
	assert.Equal(t, 5, summary.Summary.TotalCount)
}

func TestCreateViolationValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		name    string
		body    string
		status  int
		details []string
	}{
		{
			name:    "missing fields",
			body:    `{"date": "2022-04-01", "account_name": "   "}`,
			status:  http.StatusUnprocessableEntity,
			details: []string{"account_name is required", "fine_amount is required"},
		},
		{
			name:    "bad date",
			body:    `{"date": "yesterday", "account_name": "A", "fine_amount": 10}`,
			status:  http.StatusUnprocessableEntity,
			details: []string{"date is not a recognised date"},
		},
		{
			name:   "negative fine",
			body:   `{"date": "2022-04-01", "account_name": "A", "fine_amount": -10}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "not json",
			body:   `date=2022-04-01`,
			status: http.StatusBadRequest,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := ts.post(t, "/api/violations", c.body)
			require.Equal(t, c.status, rec.Code, rec.Body.String())
			var body ErrorResponse
			decode(t, rec, &body)
			if c.details != nil {
				assert.Equal(t, c.details, body.Details)
			}
		})
	}
}

func TestCreateViolationReadOnly(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Writer = nil })

	rec := ts.post(t, "/api/violations", `{"date": "2022-04-01", "account_name": "A", "fine_amount": 10}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

type failingWriter struct{}

func (failingWriter) AppendViolation(context.Context, core.Violation) (string, error) {
	return "", errors.New("quota exceeded")
}

var _ ports.ViolationWriter = failingWriter{}

func TestCreateViolationWriterError(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Writer = failingWriter{} })

	rec := ts.post(t, "/api/violations", `{"date": "2022-04-01", "account_name": "A", "fine_amount": 10}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCreateViolationRateLimited(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.RateLimit = ratelimit.Config{RequestsPerMinute: 1, Burst: 1} })

	body := `{"date": "2022-04-01", "account_name": "A", "fine_amount": 10}`
	require.Equal(t, http.StatusCreated, ts.post(t, "/api/violations", body).Code)

	rec := ts.post(t, "/api/violations", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var e ErrorResponse
	decode(t, rec, &e)
	assert.Contains(t, e.Error, "rate limit")
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, ts.get(t, "/healthz").Code)

	rec := ts.get(t, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"writer":"ok"`)

	down := newTestServer(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("database is locked") }
	})
	rec = down.get(t, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestNotFoundAndMethod(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not found"`)

	rec = ts.post(t, "/api/summary", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	ts := newTestServer(t, func(d *Deps) { d.Metrics = m })

	ts.get(t, "/api/summary")
	rec := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bicdash_http_requests_total{method="GET",route="/api/summary",status="200"} 1`)
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.get(t, "/healthz")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
