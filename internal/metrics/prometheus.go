package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all recon metrics
	namespace = "recon"

	// Subsystems
	subsystemJobs   = "jobs"
	subsystemStash  = "stash"
	subsystemSystem = "system"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Job metrics
	jobsSpawned   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsRetried   prometheus.Counter
	inFlight      prometheus.Gauge

	// Stash metrics
	stashInserts prometheus.Counter
	stashed      prometheus.Gauge

	// System metrics
	uptime prometheus.GaugeFunc

	startTime time.Time
	mu        sync.RWMutex
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initJobMetrics()
	pm.initStashMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initJobMetrics() {
	pm.jobsSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "spawned_total",
			Help:      "Total number of job attempts admitted by the worker",
		},
	)

	pm.jobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "completed_total",
			Help:      "Total number of drained job outcomes by outcome",
		},
		[]string{"outcome"},
	)

	pm.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "duration_seconds",
			Help:      "Time from spawn to completion of a job attempt",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"outcome"},
	)

	pm.jobsRetried = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "retried_total",
			Help:      "Total number of immediate re-admissions after unclassified failures",
		},
	)

	pm.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "in_flight",
			Help:      "Number of admitted jobs not yet drained",
		},
	)
}

func (pm *PrometheusMetrics) initStashMetrics() {
	pm.stashInserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStash,
			Name:      "inserts_total",
			Help:      "Total number of resource-exhausted jobs parked for delayed retry",
		},
	)

	pm.stashed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemStash,
			Name:      "entries",
			Help:      "Number of entries currently parked in the stash",
		},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Time since the metrics instance was created",
		},
		func() float64 { return pm.GetUptime().Seconds() },
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.jobsSpawned,
		pm.jobsCompleted,
		pm.jobDuration,
		pm.jobsRetried,
		pm.inFlight,
		pm.stashInserts,
		pm.stashed,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler exposing the registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// JobSpawned increments the spawned counter.
func (pm *PrometheusMetrics) JobSpawned() {
	pm.jobsSpawned.Inc()
}

// JobCompleted counts a drained outcome and records its latency.
func (pm *PrometheusMetrics) JobCompleted(outcome string, elapsed time.Duration) {
	pm.jobsCompleted.WithLabelValues(outcome).Inc()
	pm.jobDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// JobStashed increments the stash insert counter.
func (pm *PrometheusMetrics) JobStashed() {
	pm.stashInserts.Inc()
}

// JobRetried increments the retry counter.
func (pm *PrometheusMetrics) JobRetried() {
	pm.jobsRetried.Inc()
}

// SetInFlight sets the in-flight gauge.
func (pm *PrometheusMetrics) SetInFlight(n int) {
	pm.inFlight.Set(float64(n))
}

// SetStashed sets the stash size gauge.
func (pm *PrometheusMetrics) SetStashed(n int) {
	pm.stashed.Set(float64(n))
}

// GetUptime returns the time since metrics were initialized
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return time.Since(pm.startTime)
}
