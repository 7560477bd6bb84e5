// Package metrics owns the prometheus collectors of the service.
//
// Collectors are registered on an injected prometheus.Registerer so tests can
// use a private registry. Every method is safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "librarian"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Metrics struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	taskRuns           *prometheus.CounterVec
	borrowRecords      *prometheus.GaugeVec
	gatherer           prometheus.Gatherer
}

// New registers the collectors on reg. When reg is also a Gatherer (as
// *prometheus.Registry is) Handler exposes it; otherwise the default
// gatherer is used.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrow_transitions_total",
			Help:      "Borrow lifecycle transitions by transition and outcome.",
		}, []string{"transition", "outcome"}),
		transitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "borrow_transition_duration_seconds",
			Help:      "Duration of borrow lifecycle transitions in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transition"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Background task executions by task and outcome.",
		}, []string{"task", "outcome"}),
		borrowRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "borrow_records",
			Help:      "Borrow records per status at the last refresh.",
		}, []string{"status"}),
		gatherer: prometheus.DefaultGatherer,
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.transitionDuration, m.httpRequests, m.httpDuration, m.taskRuns, m.borrowRecords)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ObserveTransition counts one lifecycle transition attempt.
func (m *Metrics) ObserveTransition(transition string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcome(err)).Inc()
	m.transitionDuration.WithLabelValues(transition).Observe(duration.Seconds())
}

// TransitionCounter returns one series of the transitions counter.
func (m *Metrics) TransitionCounter(transition, outcome string) prometheus.Counter {
	return m.transitions.WithLabelValues(transition, outcome)
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTask counts one background task execution.
func (m *Metrics) ObserveTask(task string, err error) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(task, outcome(err)).Inc()
}

// SetBorrowRecords replaces the per-status record gauge.
func (m *Metrics) SetBorrowRecords(counts map[string]int64) {
	if m == nil {
		return
	}
	m.borrowRecords.Reset()
	for status, n := range counts {
		m.borrowRecords.WithLabelValues(status).Set(float64(n))
	}
}

// Middleware records request count and latency per matched route.
// Unmatched paths are grouped under "unmatched" to bound cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
