package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autohedge/backtest"
)

// Metrics holds the Prometheus collectors of the backtest service.
type Metrics struct {
	reg *prometheus.Registry

	RunsTotal     *prometheus.CounterVec // labels: status=ok|no_data|error
	TradesTotal   *prometheus.CounterVec // labels: exit_reason
	RunDuration   prometheus.Histogram
	HTTPRequests  *prometheus.CounterVec // labels: route, code
	StreamClients prometheus.Gauge
}

// New builds a private registry so several instances can coexist in tests.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autohedge_backtest_runs_total",
			Help: "Single-symbol backtest runs by outcome",
		}, []string{"status"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autohedge_backtest_trades_total",
			Help: "Closed simulated trades by exit reason",
		}, []string{"exit_reason"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autohedge_backtest_run_duration_seconds",
			Help:    "Wall time of a multi-symbol backtest request",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autohedge_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autohedge_stream_clients",
			Help: "Connected websocket stream clients",
		}),
	}
	m.reg.MustRegister(
		m.RunsTotal,
		m.TradesTotal,
		m.RunDuration,
		m.HTTPRequests,
		m.StreamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveReports records the outcome of one batch of reports.
func (m *Metrics) ObserveReports(reports []backtest.Report, took time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(took.Seconds())
	for _, rep := range reports {
		switch {
		case len(rep.Errors) > 0:
			m.RunsTotal.WithLabelValues("error").Inc()
		case rep.Bars == 0:
			m.RunsTotal.WithLabelValues("no_data").Inc()
		default:
			m.RunsTotal.WithLabelValues("ok").Inc()
		}
		for _, tr := range rep.Result.Trades {
			m.TradesTotal.WithLabelValues(string(tr.ExitReason)).Inc()
		}
	}
}
