package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TipsTotal counts finished tip submissions by outcome: settled, reverted,
	// failed or rejected.
	TipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aurafeed_tips_total",
		Help: "Total number of tip submissions by outcome",
	}, []string{"outcome"})

	// ReceiptPollAttempts records how many receipt lookups a submission needed.
	ReceiptPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aurafeed_receipt_poll_attempts",
		Help:    "Receipt lookups performed per submission",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 40, 60},
	})

	// LedgerPersistErrors counts ledger writes that failed to reach storage.
	LedgerPersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aurafeed_ledger_persist_errors_total",
		Help: "Total number of failed ledger writes",
	})

	// LedgerMigrations counts legacy ledger keys migrated to the current version.
	LedgerMigrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aurafeed_ledger_migrations_total",
		Help: "Total number of ledger migrations by source key",
	}, []string{"from"})

	// MetadataFetchErrors counts token metadata fetches that fell back to defaults.
	MetadataFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aurafeed_metadata_fetch_errors_total",
		Help: "Total number of metadata fetch failures by reason",
	}, []string{"reason"})

	// WebSocketConnections is the gauge of connected tip-event subscribers.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aurafeed_websocket_connections",
		Help: "Number of active tip-event WebSocket connections",
	})

	// WebSocketDrops counts tip events dropped for slow subscribers.
	WebSocketDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aurafeed_websocket_dropped_messages_total",
		Help: "Total number of tip events dropped because a subscriber buffer was full",
	})
)
