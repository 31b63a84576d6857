// Package metrics exposes Prometheus instrumentation for the HTTP layer
// and the experiment workflow.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instrument set registered with the default registry.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ExperimentsCreated prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	ChangelogEntries   prometheus.Counter
}

// New registers and returns the application metrics.
func New() *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		ExperimentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "experiments_created_total",
			Help: "Total experiments created.",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "experiment_status_transitions_total",
			Help: "Status transitions by source and target status.",
		}, []string{"from", "to"}),
		ChangelogEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "experiment_changelog_entries_total",
			Help: "Change-log rows written.",
		}),
	}
}

// Middleware instruments every request with a counter and latency
// histogram. The route template is used as the path label to keep
// cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			m.requestsTotal.WithLabelValues(
				c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(
				c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
