// Package observability exposes Prometheus metrics for the HTTP API, ledger
// mutations and the dashboard figures.
package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sarisari/tindahan/ledger"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	mutationsTotal   *prometheus.CounterVec
	sweepsTotal      *prometheus.CounterVec
	outstanding      prometheus.Gauge
	withBalance      prometheus.Gauge
	overdue          prometheus.Gauge
	agingOutstanding *prometheus.GaugeVec
}

var _ ledger.Recorder = (*Metrics)(nil)

// NewMetrics initializes the registry and every metric.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tindahan_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tindahan_http_request_duration_seconds",
			Help:    "HTTP request duration per route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tindahan_ledger_mutations_total",
			Help: "Ledger write operations by operation and result (ok, rejected, failed).",
		}, []string{"op", "result"}),
		sweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tindahan_overdue_sweeps_total",
			Help: "Overdue sweep runs by result.",
		}, []string{"result"}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tindahan_outstanding_pesos",
			Help: "Total outstanding credit across all customers, in pesos.",
		}),
		withBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tindahan_customers_with_balance",
			Help: "Customers that currently owe money.",
		}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tindahan_overdue_customers",
			Help: "Customers with at least one unpaid credit past its due date.",
		}),
		agingOutstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tindahan_aging_outstanding_pesos",
			Help: "Unpaid remainder per aging bucket, in pesos.",
		}, []string{"bucket"}),
	}
	registry.MustRegister(
		m.requestsTotal, m.requestDuration,
		m.mutationsTotal, m.sweepsTotal,
		m.outstanding, m.withBalance, m.overdue, m.agingOutstanding,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// RecordMutation implements ledger.Recorder.
func (m *Metrics) RecordMutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(op, mutationResult(err)).Inc()
}

// RecordSweep counts one overdue sweep run.
func (m *Metrics) RecordSweep(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.sweepsTotal.WithLabelValues(result).Inc()
}

// ObserveSummary publishes the dashboard figures as gauges.
func (m *Metrics) ObserveSummary(k ledger.KPISummary) {
	if m == nil {
		return
	}
	m.outstanding.Set(k.TotalOutstanding.InexactFloat64())
	m.withBalance.Set(float64(k.TotalCustomersWithBalance))
	m.overdue.Set(float64(k.OverdueCount))
	for _, bucket := range ledger.AgingBuckets {
		m.agingOutstanding.WithLabelValues(string(bucket)).Set(k.Aging.Get(bucket).InexactFloat64())
	}
}

// mutationResult separates caller mistakes from real failures.
func mutationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrNotFound):
		return "rejected"
	default:
		return "failed"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
