package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bicdash/internal/core"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/api/summary", "GET", 200, time.Millisecond)
	m.ObserveDatasetLoad(time.Second, 1, 1, nil, nil, nil)
	m.ViolationRecorded(nil)
	m.SyncHandled(errors.New("x"))
	m.ImportFinished(nil)
	m.SnapshotLookup(true)
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.ViolationRecorded(nil)
	m.ViolationRecorded(errors.New("bad"))
	m.ViolationRecorded(errors.New("bad"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.violationsRecorded.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.violationsRecorded.WithLabelValues("error")))

	m.SnapshotLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshotCache.WithLabelValues("miss")))
}

func TestObserveDatasetLoad(t *testing.T) {
	m := New()
	m.ObserveDatasetLoad(2*time.Second, 10, 4,
		core.Exclusions{core.ReasonMissingFine: 3},
		core.Exclusions{core.ReasonBeforeCutoff: 1}, nil)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.datasetRows.WithLabelValues("violations")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.datasetExcluded.WithLabelValues("violations", "missing_fine")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.datasetLoads.WithLabelValues("ok")))

	m.ObserveDatasetLoad(time.Second, 0, 0, nil, nil, errors.New("down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.datasetLoads.WithLabelValues("error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.datasetRows.WithLabelValues("violations")), "failed load keeps previous figures")
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/top", http.MethodGet, 200, 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `bicdash_http_requests_total{method="GET",route="/api/top",status="200"} 1`)
}
