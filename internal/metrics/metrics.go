// Package metrics exposes the service's Prometheus collectors. All methods
// are safe on a nil *Metrics so callers can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bicdash/internal/core"
)

const namespace = "bicdash"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	datasetLoads       *prometheus.CounterVec
	datasetLoadSeconds prometheus.Histogram
	datasetRows        *prometheus.GaugeVec
	datasetExcluded    *prometheus.GaugeVec
	violationsRecorded *prometheus.CounterVec
	syncMessages       *prometheus.CounterVec
	imports            *prometheus.CounterVec
	snapshotCache      *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors, on a
// private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		datasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset loads from the configured backend by result.",
		}, []string{"result"}),
		datasetLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent loading and preparing the datasets.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		datasetRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows kept in the current snapshot.",
		}, []string{"dataset"}),
		datasetExcluded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_excluded_rows",
			Help:      "Rows left out of the current snapshot by reason.",
		}, []string{"dataset", "reason"}),
		violationsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_recorded_total",
			Help:      "Violations recorded through the API by result.",
		}, []string{"result"}),
		syncMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_messages_total",
			Help:      "Violation sync attempts handled by the worker by result.",
		}, []string{"result"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Dataset imports into SQLite by result.",
		}, []string{"result"}),
		snapshotCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_lookups_total",
			Help:      "Snapshot cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.datasetLoads,
		m.datasetLoadSeconds,
		m.datasetRows,
		m.datasetExcluded,
		m.violationsRecorded,
		m.syncMessages,
		m.imports,
		m.snapshotCache,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveDatasetLoad records one load attempt. On success the row gauges are
// replaced with the new snapshot's figures.
func (m *Metrics) ObserveDatasetLoad(elapsed time.Duration, violations, complaints int, excluded, excludedComplaints core.Exclusions, err error) {
	if m == nil {
		return
	}
	m.datasetLoadSeconds.Observe(elapsed.Seconds())
	if err != nil {
		m.datasetLoads.WithLabelValues("error").Inc()
		return
	}
	m.datasetLoads.WithLabelValues("ok").Inc()
	m.datasetRows.WithLabelValues("violations").Set(float64(violations))
	m.datasetRows.WithLabelValues("complaints").Set(float64(complaints))
	m.datasetExcluded.Reset()
	for reason, n := range excluded {
		m.datasetExcluded.WithLabelValues("violations", string(reason)).Set(float64(n))
	}
	for reason, n := range excludedComplaints {
		m.datasetExcluded.WithLabelValues("complaints", string(reason)).Set(float64(n))
	}
}

func (m *Metrics) ViolationRecorded(err error) {
	if m == nil {
		return
	}
	m.violationsRecorded.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SyncHandled(err error) {
	if m == nil {
		return
	}
	m.syncMessages.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ImportFinished(err error) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(result(err)).Inc()
}

// SnapshotLookup counts a cache hit or miss.
func (m *Metrics) SnapshotLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.snapshotCache.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
