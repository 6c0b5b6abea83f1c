package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/studio-agenda-api/internal/models"
)

const metricsNamespace = "studio_agenda"

// counterAvg accumulates a count and a total duration for snapshot averages.
type counterAvg struct {
	count uint64
	nanos uint64
}

func (c *counterAvg) add(d time.Duration) {
	atomic.AddUint64(&c.count, 1)
	atomic.AddUint64(&c.nanos, uint64(d.Nanoseconds()))
}

func (c *counterAvg) load() (uint64, float64) {
	n := atomic.LoadUint64(&c.count)
	if n == 0 {
		return 0, 0
	}
	return n, float64(atomic.LoadUint64(&c.nanos)) / float64(n) / float64(time.Millisecond)
}

// MetricsService owns the Prometheus registry for the API and keeps a few
// in-process aggregates for the health endpoint.
type MetricsService struct {
	handler http.Handler

	httpDuration *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec
	dbDuration   *prometheus.HistogramVec
	transitions  *prometheus.CounterVec

	requests  counterAvg
	dbQueries counterAvg
	hits      uint64
	misses    uint64

	mu           sync.Mutex
	transitionsN map[string]uint64
}

// NewMetricsService builds a private registry so tests can create as many as they like.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	m := &MetricsService{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "operation_seconds",
			Help:      "Redis round-trip latency by operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"op"}),
		dbDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of instrumented database units of work.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "change_requests",
			Name:      "transitions_total",
			Help:      "Change request transitions by outcome.",
		}, []string{"transition", "outcome"}),
		transitionsN: map[string]uint64{},
	}
	registry.MustRegister(
		m.httpDuration,
		m.cacheLookups,
		m.cacheLatency,
		m.dbDuration,
		m.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
	m.requests.add(duration)
}

// RecordCacheOperation records a lookup and whether it hit.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.hits, 1)
	} else {
		atomic.AddUint64(&m.misses, 1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
}

// ObserveCacheWrite records a cache write round-trip.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveDBQuery records a database unit of work under label.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.dbQueries.add(duration)
}

// RecordTransition counts a change-request transition attempt.
func (m *MetricsService) RecordTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcome).Inc()
	m.mu.Lock()
	m.transitionsN[transition+"."+outcome]++
	m.mu.Unlock()
}

// Snapshot summarises the in-process aggregates.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	snap := models.SystemMetrics{
		CacheHits:   atomic.LoadUint64(&m.hits),
		CacheMisses: atomic.LoadUint64(&m.misses),
		Goroutines:  runtime.NumGoroutine(),
		GeneratedAt: time.Now().UTC(),
	}
	snap.RequestsTotal, snap.AverageRequestDurationMs = m.requests.load()
	snap.DBQueryCount, snap.AverageDBQueryDurationMs = m.dbQueries.load()
	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRatio = float64(snap.CacheHits) / float64(lookups)
	}

	m.mu.Lock()
	snap.Transitions = make(map[string]uint64, len(m.transitionsN))
	for k, v := range m.transitionsN {
		snap.Transitions[k] = v
	}
	m.mu.Unlock()
	return snap
}
