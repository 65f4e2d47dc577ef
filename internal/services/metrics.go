package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fairdice-backend/internal/models"
)

// Metrics groups the service-level collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	betsTotal       *prometheus.CounterVec
	seedFallbacks   prometheus.Counter
	seedCommitments prometheus.Counter
	ledgerOps       *prometheus.CounterVec
	ledgerConflicts prometheus.Counter
	ledgerLatency   *prometheus.HistogramVec
	httpReqTotal    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		betsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fairdice_bets_total",
			Help: "Settled bets by bet type and outcome",
		}, []string{"bet_type", "outcome"}),
		seedFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "fairdice_seed_fallbacks_total",
			Help: "Bets rolled with a seed generated on the spot because the presented commitment was unknown",
		}),
		seedCommitments: f.NewCounter(prometheus.CounterOpts{
			Name: "fairdice_seed_commitments_total",
			Help: "Server seed commitments issued",
		}),
		ledgerOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fairdice_ledger_operations_total",
			Help: "Ledger mutations by kind and result",
		}, []string{"kind", "result"}),
		ledgerConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "fairdice_ledger_write_conflicts_total",
			Help: "Optimistic ledger writes that lost a race and were retried",
		}),
		ledgerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fairdice_ledger_operation_duration_seconds",
			Help:    "Ledger mutation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		httpReqTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fairdice_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fairdice_http_request_duration_seconds",
			Help:    "Request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "endpoint"}),
	}
}

func (m *Metrics) BetSettled(bet models.BetRecord) {
	if m == nil {
		return
	}
	m.betsTotal.WithLabelValues(string(bet.BetType), string(bet.Outcome)).Inc()
}

func (m *Metrics) SeedFallback() {
	if m == nil {
		return
	}
	m.seedFallbacks.Inc()
}

func (m *Metrics) SeedCommitted() {
	if m == nil {
		return
	}
	m.seedCommitments.Inc()
}

func (m *Metrics) LedgerOp(kind models.EventKind, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerOps.WithLabelValues(string(kind), result).Inc()
	m.ledgerLatency.WithLabelValues(string(kind)).Observe(took.Seconds())
}

func (m *Metrics) LedgerConflict() {
	if m == nil {
		return
	}
	m.ledgerConflicts.Inc()
}

func (m *Metrics) HTTPRequest(method, endpoint string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpReqTotal.WithLabelValues(method, endpoint, statusClass(status)).Inc()
	m.httpLatency.WithLabelValues(method, endpoint).Observe(took.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
