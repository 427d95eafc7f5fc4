package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "swapescrow",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. code is the JSON-RPC error
// code, zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics tracks transaction execution and the escrow lifecycle.
type LedgerMetrics struct {
	txs         *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	custody     prometheus.Counter
	open        prometheus.Gauge
}

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Executed transactions segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "swapescrow",
				Subsystem: "ledger",
				Name:      "execution_seconds",
				Help:      "Time spent executing and committing a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "escrow",
				Name:      "transitions_total",
				Help:      "Committed escrow lifecycle transitions.",
			}, []string{"transition"}),
			custody: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "swapescrow",
				Subsystem: "escrow",
				Name:      "custody_violations_total",
				Help:      "Exchanges rejected because the vault held less than the recorded deposit.",
			}),
			open: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "swapescrow",
				Subsystem: "escrow",
				Name:      "open",
				Help:      "Live escrows: initialized and not yet exchanged or refunded.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.txs,
			ledgerRegistry.latency,
			ledgerRegistry.transitions,
			ledgerRegistry.custody,
			ledgerRegistry.open,
		)
	})
	return ledgerRegistry
}

// ObserveTx records one executed transaction. outcome is "committed",
// "rejected" or "conflict".
func (m *LedgerMetrics) ObserveTx(txType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.txs.WithLabelValues(txType, outcome).Inc()
	m.latency.WithLabelValues(txType).Observe(d.Seconds())
}

// RecordTransition counts a committed escrow transition and tracks the open
// gauge.
func (m *LedgerMetrics) RecordTransition(transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition).Inc()
	switch transition {
	case "initialized":
		m.open.Inc()
	case "exchanged", "refunded":
		m.open.Dec()
	}
}

// SetOpen seeds the open escrow gauge with the number of live records.
func (m *LedgerMetrics) SetOpen(n int) {
	if m == nil {
		return
	}
	m.open.Set(float64(n))
}

// RecordCustodyViolation counts an exchange rejected by the custody check.
func (m *LedgerMetrics) RecordCustodyViolation() {
	if m == nil {
		return
	}
	m.custody.Inc()
}
