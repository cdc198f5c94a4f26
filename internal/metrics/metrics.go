// Package metrics holds the Prometheus collectors relay exposes. Collectors
// are registered once per registry with Register; the Record helpers are
// no-ops until then, so library and one-shot CLI paths pay nothing.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type collectors struct {
	attempts        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	calls           *prometheus.CounterVec
	limiterWait     *prometheus.HistogramVec
	attemptDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	panics       prometheus.Counter
}

var (
	mu      sync.RWMutex
	current *collectors
)

// Register creates every relay collector on reg. It must be called once per
// registry; the most recent registration receives all recordings.
func Register(reg prometheus.Registerer) {
	factory := promauto.With(reg)

	c := &collectors{
		// attempts tracks single HTTP attempts per connector and outcome
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_dispatch_attempts_total",
				Help: "Total number of HTTP attempts made by dispatchers",
			},
			[]string{"connector", "outcome", "kind"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_dispatch_retries_total",
				Help: "Total number of retries scheduled after transient failures",
			},
			[]string{"connector", "kind"},
		),
		// calls tracks logical calls by terminal result
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_dispatch_calls_total",
				Help: "Total number of logical dispatch calls by result",
			},
			[]string{"connector", "result"},
		),
		limiterWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_dispatch_limiter_wait_seconds",
				Help:    "Time spent waiting for a rate limit slot",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"connector"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_dispatch_attempt_duration_seconds",
				Help:    "HTTP attempt latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"connector", "outcome"},
		),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "Served HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_errors_total",
				Help: "Total number of error envelopes returned, by code",
			},
			[]string{"error_code", "http_status"},
		),
		panics: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}

	mu.Lock()
	current = c
	mu.Unlock()
}

// Reset drops the registered collectors; recordings become no-ops.
func Reset() {
	mu.Lock()
	current = nil
	mu.Unlock()
}

func get() *collectors {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	c := get()
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError records an error envelope with code and status
func RecordError(errorCode string, httpStatus int) {
	if c := get(); c != nil {
		c.errors.WithLabelValues(errorCode, strconv.Itoa(httpStatus)).Inc()
	}
}

// RecordPanic records a panic recovery
func RecordPanic() {
	if c := get(); c != nil {
		c.panics.Inc()
	}
}
