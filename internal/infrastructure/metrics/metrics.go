// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lms"

// Metrics groups the collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	sequenceIssued  *prometheus.CounterVec
	sequenceRetries *prometheus.CounterVec

	jobRuns     *prometheus.CounterVec
	jobAffected *prometheus.CounterVec
}

// New creates collectors on a fresh registry together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		sequenceIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "numbers_issued_total",
			Help:      "Numbers consumed from sequences.",
		}, []string{"seq_type"}),
		sequenceRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequence",
			Name:      "retries_total",
			Help:      "Sequence transactions retried after a serialization conflict.",
		}, []string{"seq_type"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by outcome.",
		}, []string{"job", "result"}),
		jobAffected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "rows_affected_total",
			Help:      "Rows changed by background jobs.",
		}, []string{"job"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.sequenceIssued, m.sequenceRetries,
		m.jobRuns, m.jobAffected,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// SequenceIssued counts a consumed number.
func (m *Metrics) SequenceIssued(seqType string) {
	if m == nil {
		return
	}
	m.sequenceIssued.WithLabelValues(seqType).Inc()
}

// SequenceRetried counts a retried sequence transaction.
func (m *Metrics) SequenceRetried(seqType string) {
	if m == nil {
		return
	}
	m.sequenceRetries.WithLabelValues(seqType).Inc()
}

// JobRun records a background job execution and the rows it touched.
func (m *Metrics) JobRun(job string, affected int64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	if affected > 0 {
		m.jobAffected.WithLabelValues(job).Add(float64(affected))
	}
}

// PoolStats is a point-in-time view of a database connection pool.
type PoolStats struct {
	Total           int32
	Acquired        int32
	Idle            int32
	Max             int32
	AcquireCount    int64
	AcquireDuration time.Duration
}

// ObservePool exports gauges read from sample on every scrape.
func (m *Metrics) ObservePool(name string, sample func() PoolStats) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"pool": name}
	gauge := func(metric, help string, v func(PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "db_pool",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return v(sample()) })
	}
	m.registry.MustRegister(
		gauge("connections", "Open connections.", func(s PoolStats) float64 { return float64(s.Total) }),
		gauge("acquired_connections", "Connections in use.", func(s PoolStats) float64 { return float64(s.Acquired) }),
		gauge("idle_connections", "Idle connections.", func(s PoolStats) float64 { return float64(s.Idle) }),
		gauge("max_connections", "Configured pool size.", func(s PoolStats) float64 { return float64(s.Max) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "db_pool",
			Name:        "acquires_total",
			Help:        "Successful connection acquisitions.",
			ConstLabels: labels,
		}, func() float64 { return float64(sample().AcquireCount) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "db_pool",
			Name:        "acquire_wait_seconds_total",
			Help:        "Time spent waiting for a connection.",
			ConstLabels: labels,
		}, func() float64 { return sample().AcquireDuration.Seconds() }),
	)
}
