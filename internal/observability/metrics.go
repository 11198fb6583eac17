package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoundTripSeconds observes matched request/response latency by category
	RoundTripSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trader",
		Name:      "round_trip_seconds",
		Help:      "Latency between a FIX request and its correlated response.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"category"})

	// LatencyBreaches counts round trips above the configured threshold
	LatencyBreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trader",
		Name:      "latency_breaches_total",
		Help:      "Round trips that exceeded the latency threshold.",
	}, []string{"category"})

	// InboundMessages counts inbound FIX messages by MsgType
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trader",
		Name:      "fix_inbound_messages_total",
		Help:      "Inbound FIX messages by MsgType.",
	}, []string{"msg_type"})

	// ReplyTimeouts counts correlated waits that expired, by correlator
	ReplyTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trader",
		Name:      "reply_timeouts_total",
		Help:      "Correlated reply waits that timed out.",
	}, []string{"correlator"})

	// IntentOutcomes counts processed intents by final ledger status
	IntentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trader",
		Name:      "intent_outcomes_total",
		Help:      "Order intents by outcome status.",
	}, []string{"status"})

	// ValidationRejections counts rejected intents by failing stage
	ValidationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trader",
		Name:      "validation_rejections_total",
		Help:      "Order intents rejected by validation, by stage.",
	}, []string{"stage"})

	// SessionConnected is 1 while the FIX session is logged on
	SessionConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trader",
		Name:      "fix_session_connected",
		Help:      "Whether the FIX session is logged on.",
	})
)
