package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/absence-tracker/absence"
)

// Metrics records command outcomes and HTTP traffic on a private registry,
// so tests can build as many routers as they like.
type Metrics struct {
	registry        *prometheus.Registry
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
}

// NewMetrics builds the collectors. undoDepth, when set, is exported as a
// gauge sampled at scrape time.
func NewMetrics(undoDepth func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "absence",
			Name:      "commands_total",
			Help:      "Commands handled, by operation and result.",
		}, []string{"operation", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "absence",
			Name:      "command_duration_seconds",
			Help:      "Command latency, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "absence",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if undoDepth != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "absence",
			Name:      "undo_depth",
			Help:      "Edits currently reversible.",
		}, func() float64 { return float64(undoDepth()) }))
	}
	return m
}

// Observe records one command.
func (m *Metrics) Observe(operation string, err error, elapsed time.Duration) {
	m.commands.WithLabelValues(operation, resultLabel(err)).Inc()
	m.commandDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Middleware counts requests by chi route pattern, keeping label
// cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, absence.ErrValidation):
		return "invalid"
	case errors.Is(err, absence.ErrConflict):
		return "conflict"
	case errors.Is(err, absence.ErrNotFound):
		return "not_found"
	case errors.Is(err, absence.ErrStorageUnavailable):
		return "unavailable"
	}
	return "error"
}
