// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "rugwatch"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Stream metrics
	StreamConnects     prometheus.Counter
	StreamFailures     prometheus.Counter
	StreamFramesTotal  *prometheus.CounterVec
	EventsCreated      prometheus.Counter
	ReconnectDelay     prometheus.Gauge
	LastFrameTimestamp prometheus.Gauge

	// Watchlist metrics
	WatchlistSize     prometheus.Gauge
	WatchlistMatches  prometheus.Counter
	WatchlistRefresh  *prometheus.CounterVec
	AlertsDispatched  *prometheus.CounterVec
	CallbacksReceived *prometheus.CounterVec

	// Trade metrics
	TradesTotal   *prometheus.CounterVec
	TradeDuration *prometheus.HistogramVec
	RPCLatency    *prometheus.HistogramVec

	// Custody metrics
	WalletsProvisioned prometheus.Counter

	// Health metrics
	UptimeSeconds prometheus.Counter

	lastFrame atomic.Int64
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		StreamConnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connects_total",
			Help:      "Total number of successful stream connections",
		}),
		StreamFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "failures_total",
			Help:      "Total number of stream connection failures",
		}),
		StreamFramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Total number of stream frames by outcome",
		}, []string{"outcome"}),
		EventsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "create_events_total",
			Help:      "Total number of token creation events decoded",
		}),
		ReconnectDelay: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnect_delay_seconds",
			Help:      "Delay before the pending reconnect attempt",
		}),
		LastFrameTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "last_frame_timestamp",
			Help:      "Unix timestamp of the last received frame",
		}),

		WatchlistSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "entries",
			Help:      "Number of addresses in the loaded watchlist snapshot",
		}),
		WatchlistMatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "matches_total",
			Help:      "Total number of creation events whose creator is watchlisted",
		}),
		WatchlistRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "refresh_total",
			Help:      "Total number of watchlist refreshes by status",
		}, []string{"status"}),
		AlertsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_total",
			Help:      "Total number of alerts by delivery status",
		}, []string{"status"}),
		CallbacksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "callbacks_total",
			Help:      "Total number of action callbacks by kind",
		}, []string{"kind"}),

		TradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_total",
			Help:      "Total number of trade attempts by action and error class",
		}, []string{"action", "class"}),
		TradeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "duration_seconds",
			Help:      "End-to-end trade execution duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
		}, []string{"action"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "call_latency_seconds",
			Help:      "Outbound call latency in seconds by step",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),

		WalletsProvisioned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "wallets_provisioned_total",
			Help:      "Total number of wallets provisioned",
		}),

		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// StreamConnected records a successful connection.
func (m *Metrics) StreamConnected() {
	if m == nil {
		return
	}
	m.StreamConnects.Inc()
	m.ReconnectDelay.Set(0)
}

// StreamFailed records a transport failure and the delay before the next attempt.
func (m *Metrics) StreamFailed(delay time.Duration) {
	if m == nil {
		return
	}
	m.StreamFailures.Inc()
	m.ReconnectDelay.Set(delay.Seconds())
}

// FrameReceived records one frame by outcome: "create", "ignored" or "decode_error".
func (m *Metrics) FrameReceived(outcome string) {
	if m == nil {
		return
	}
	now := time.Now()
	m.lastFrame.Store(now.Unix())
	m.StreamFramesTotal.WithLabelValues(outcome).Inc()
	m.LastFrameTimestamp.Set(float64(now.Unix()))
	if outcome == "create" {
		m.EventsCreated.Inc()
	}
}

// LastFrame returns the time of the last received frame, zero if none.
func (m *Metrics) LastFrame() time.Time {
	if m == nil {
		return time.Time{}
	}
	ts := m.lastFrame.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// WatchlistLoaded records a refresh outcome and the resulting snapshot size.
func (m *Metrics) WatchlistLoaded(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WatchlistRefresh.WithLabelValues("error").Inc()
		return
	}
	m.WatchlistRefresh.WithLabelValues("ok").Inc()
	m.WatchlistSize.Set(float64(size))
}

// WatchlistMatched increments the match counter.
func (m *Metrics) WatchlistMatched() {
	if m == nil {
		return
	}
	m.WatchlistMatches.Inc()
}

// AlertSent records an alert delivery.
func (m *Metrics) AlertSent(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AlertsDispatched.WithLabelValues(status).Inc()
}

// CallbackReceived records an action callback by kind ("invalid" for rejects).
func (m *Metrics) CallbackReceived(kind string) {
	if m == nil {
		return
	}
	m.CallbacksReceived.WithLabelValues(kind).Inc()
}

// TradeFinished records a finished trade.
func (m *Metrics) TradeFinished(action, class string, d time.Duration) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(action, class).Inc()
	m.TradeDuration.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveCall records the latency of one outbound trade step.
func (m *Metrics) ObserveCall(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCLatency.WithLabelValues(step).Observe(d.Seconds())
}

// WalletProvisioned increments the provisioned wallet counter.
func (m *Metrics) WalletProvisioned() {
	if m == nil {
		return
	}
	m.WalletsProvisioned.Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint of gatherer.
// A nil gatherer uses prometheus.DefaultGatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
