package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound API calls to TopstepX.
	VenueRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topstepx_api_requests_total",
			Help: "Total number of TopstepX API requests made (by endpoint and status).",
		},
		[]string{"endpoint", "status"},
	)

	// Measures duration of API requests to TopstepX.
	VenueRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topstepx_api_request_duration_seconds",
			Help:    "Duration of TopstepX API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint"},
	)

	// Gauges the last successful bar poll time (seconds since epoch).
	LastPollTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qx_last_poll_timestamp",
			Help: "Timestamp (unix seconds) of the last successful bar poll.",
		},
	)

	// Number of bars currently held in the rolling series.
	BarsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qx_bars_loaded",
			Help: "Number of bars in the rolling in-memory series.",
		},
	)

	// Confirmations detected, by session and bias.
	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qx_signals_total",
			Help: "Count of range confirmations detected.",
		},
		[]string{"session", "bias"},
	)

	// Trades opened, by session and result of the order placement.
	TradesOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qx_trades_opened_total",
			Help: "Count of trades opened (or attempted).",
		},
		[]string{"session", "result"},
	)

	// Trade exits, by reason.
	TradesClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qx_trades_closed_total",
			Help: "Count of full or partial trade exits.",
		},
		[]string{"session", "reason"},
	)

	// Realized daily P&L in dollars.
	DailyPnL = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qx_daily_pnl_dollars",
			Help: "Realized P&L for the current ET trading day.",
		},
	)

	// NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	// Publish latency to NATS by subject.
	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_publish_duration_seconds",
			Help:    "Duration of NATS publishes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qx_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// ObserveDuration records the time taken since start into the given histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncVenueRequest(endpoint, status string) {
	VenueRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastPoll(t time.Time) {
	LastPollTimestamp.Set(float64(t.Unix()))
}
