// Package metrics exposes Prometheus instruments for the ledger service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "elo_ledger"

// Metrics holds every instrument the service records into
type Metrics struct {
	MatchesRecorded      *prometheus.CounterVec
	MatchesUndone        *prometheus.CounterVec
	StartersSet          *prometheus.CounterVec
	SeasonsCreated       *prometheus.CounterVec
	LedgerDivergence     *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	KafkaMessages        *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MatchesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_recorded_total",
			Help:      "Logical matches committed to both ledgers.",
		}, []string{"game_type", "kind"}),
		MatchesUndone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_undone_total",
			Help:      "Logical matches reversed on both ledgers.",
		}, []string{"game_type"}),
		StartersSet: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "starters_set_total",
			Help:      "Matches stamped with a starting player.",
		}, []string{"game_type"}),
		SeasonsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seasons_created_total",
			Help:      "Season leaderboards bootstrapped from their all-time roster.",
		}, []string{"game_type"}),
		LedgerDivergence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_divergence_total",
			Help:      "Operations aborted because the season and all-time ledgers disagree.",
		}, []string{"game_type", "operation"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Best-effort notifications that could not be delivered.",
		}, []string{"sink"}),
		KafkaMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_total",
			Help:      "Match events consumed from Kafka by result.",
		}, []string{"result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	reg.MustRegister(
		m.MatchesRecorded,
		m.MatchesUndone,
		m.StartersSet,
		m.SeasonsCreated,
		m.LedgerDivergence,
		m.NotificationFailures,
		m.KafkaMessages,
		m.OperationDuration,
	)
	return m
}

// NewNoop returns instruments registered on a private registry, for tests and
// for processes that do not expose /metrics.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Observe records the duration of an operation since start
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
