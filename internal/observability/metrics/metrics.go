// Package metrics provides Prometheus instrumentation for domaguardian.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Contract call metrics
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	eventsTotal   *prometheus.CounterVec
	publishTotal  *prometheus.CounterVec
	journalHalted prometheus.Gauge

	// Ledger reconciliation metrics
	ledgerOutstanding prometheus.Gauge
	ledgerHeld        prometheus.Gauge
	ledgerShortfall   prometheus.Gauge
	reconcileTotal    *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_calls_total",
			Help: "Total number of submitted contract calls",
		},
		[]string{"contract", "method", "status"},
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contract_call_duration_seconds",
			Help:    "Contract call latency in seconds, including journaling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"contract", "method"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_events_total",
			Help: "Total number of committed contract events",
		},
		[]string{"contract", "event"},
	)

	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Total number of event batches handed to sinks",
		},
		[]string{"sink", "status"},
	)

	journalHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_halted",
		Help: "1 when a journal write failed and the node rejects writes",
	})

	ledgerOutstanding = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_outstanding_credit_wei",
		Help: "Sum of all credit balances",
	})

	ledgerHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_held_currency_wei",
		Help: "Currency held by the ledger",
	})

	ledgerShortfall = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_shortfall_wei",
		Help: "Outstanding credit not backed by held currency",
	})

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_reconcile_total",
			Help: "Total number of ledger reconciliation runs",
		},
		[]string{"result"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
