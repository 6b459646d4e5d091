// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Coordinator metrics
	HistoryAppendErrors prometheus.Counter
	Notifications       *prometheus.CounterVec

	// Invalidation metrics
	InvalidationBumps *prometheus.CounterVec
	TriggerVersion    *prometheus.GaugeVec

	// Scanner metrics
	ScansTotal       *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	HoldingsTracked  prometheus.Gauge
	MetadataFailures prometheus.Counter
	FavoritesAdded   prometheus.Counter

	// Feed metrics
	FeedState      prometheus.Gauge
	FeedReconnects prometheus.Counter
	FeedEvents     *prometheus.CounterVec

	// Wallet / price latency
	RPCCallLatency   *prometheus.HistogramVec
	PriceFetchErrors prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "etoken_wallet"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Command metrics
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "executions_total",
			Help:      "Total number of wallet commands by action and outcome",
		}, []string{"action", "outcome"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Wallet command duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),

		// Coordinator metrics
		HistoryAppendErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "history_append_errors_total",
			Help:      "Total number of failed best-effort history appends",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "notifications_total",
			Help:      "Total number of success notifications by action",
		}, []string{"action"}),

		// Invalidation metrics
		InvalidationBumps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "bumps_total",
			Help:      "Total number of trigger bumps by trigger",
		}, []string{"trigger"}),
		TriggerVersion: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "trigger_version",
			Help:      "Current version of each invalidation trigger",
		}, []string{"trigger"}),

		// Scanner metrics
		ScansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Total number of reconciliation scans by result",
		}, []string{"result"}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Reconciliation scan duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		HoldingsTracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "holdings",
			Help:      "Number of non-zero holdings in the last committed scan",
		}),
		MetadataFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "metadata_failures_total",
			Help:      "Total number of token metadata lookups that fell back to placeholders",
		}),
		FavoritesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "favorites_added_total",
			Help:      "Total number of directory entries auto-favorited",
		}),

		// Feed metrics
		FeedState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state",
			Help:      "Feed connection state (0=disconnected, 1=connecting, 2=connected)",
		}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnections",
		}),
		FeedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Total number of chain events received by type",
		}, []string{"type"}),

		// Wallet / price latency
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "rpc_call_duration_seconds",
			Help:      "Wallet RPC call latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		PriceFetchErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price fetches",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulScan: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last committed scan",
		}),
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordCommand records the outcome of a wallet command.
func RecordCommand(action, outcome string, seconds float64) {
	DefaultMetrics.CommandsTotal.WithLabelValues(action, outcome).Inc()
	DefaultMetrics.CommandDuration.WithLabelValues(action).Observe(seconds)
}

// RecordNotification increments the notification counter.
func RecordNotification(action string) {
	DefaultMetrics.Notifications.WithLabelValues(action).Inc()
}

// RecordHistoryAppendError increments the failed history append counter.
func RecordHistoryAppendError() {
	DefaultMetrics.HistoryAppendErrors.Inc()
}

// RecordBump records a trigger bump and its new version.
func RecordBump(trigger string, version uint64) {
	DefaultMetrics.InvalidationBumps.WithLabelValues(trigger).Inc()
	DefaultMetrics.TriggerVersion.WithLabelValues(trigger).Set(float64(version))
}

// RecordScan records a reconciliation scan.
func RecordScan(result string, seconds float64, holdings int) {
	DefaultMetrics.ScansTotal.WithLabelValues(result).Inc()
	DefaultMetrics.ScanDuration.Observe(seconds)
	if result == "committed" {
		DefaultMetrics.HoldingsTracked.Set(float64(holdings))
	}
}

// RecordMetadataFailure increments the metadata fallback counter.
func RecordMetadataFailure() {
	DefaultMetrics.MetadataFailures.Inc()
}

// RecordFavoritesAdded adds n to the auto-favorited counter.
func RecordFavoritesAdded(n int) {
	DefaultMetrics.FavoritesAdded.Add(float64(n))
}

// UpdateFeedState sets the feed connection state gauge.
func UpdateFeedState(state int) {
	DefaultMetrics.FeedState.Set(float64(state))
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordFeedEvent increments the chain event counter.
func RecordFeedEvent(eventType string) {
	DefaultMetrics.FeedEvents.WithLabelValues(eventType).Inc()
}

// RecordRPCLatency records wallet RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordPriceFetchError increments the price fetch error counter.
func RecordPriceFetchError() {
	DefaultMetrics.PriceFetchErrors.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateLastSuccessfulScan sets the last committed scan timestamp.
func UpdateLastSuccessfulScan(unix int64) {
	DefaultMetrics.LastSuccessfulScan.Set(float64(unix))
}

// AddUptime adds seconds to the uptime counter.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}
