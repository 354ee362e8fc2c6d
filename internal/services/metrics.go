package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the custom Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing, which keeps tests off the default registry.
type Metrics struct {
	// Operation metrics
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec

	// Browser metrics
	BrowserLaunches prometheus.Counter

	// Session metrics
	KeepAlives      *prometheus.CounterVec
	SessionsExpired prometheus.Counter

	// Sync metrics
	SyncItems *prometheus.CounterVec
}

// GaugeSources supplies the values for gauges that are read on scrape
type GaugeSources struct {
	LiveBrowsers func() int
	PagesInUse   func() int
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics. Call once per process.
func InitMetrics(sources GaugeSources) *Metrics {
	metrics := &Metrics{
		// Operations by name and outcome kind ("ok" on success)
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meetsync_operations_total",
			Help: "Total number of actor operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meetsync_operation_duration_seconds",
			Help:    "Actor operation latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300}, // a full sync can take minutes
		}, []string{"operation"}),

		BrowserLaunches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetsync_browser_launches_total",
			Help: "Total number of headless browser launches",
		}),

		KeepAlives: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meetsync_keepalive_total",
			Help: "Keep-alive firings by outcome",
		}, []string{"outcome"}),

		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetsync_sessions_expired_total",
			Help: "Sessions marked inactive after a sign-in redirect",
		}),

		SyncItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meetsync_sync_items_total",
			Help: "Items returned by sync runs by kind",
		}, []string{"kind"}), // clips, meetings, transcripts
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "meetsync_browsers_live",
			Help: "Headless browsers currently running",
		},
		func() float64 {
			if sources.LiveBrowsers != nil {
				return float64(sources.LiveBrowsers())
			}
			return 0
		},
	))
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "meetsync_pages_open",
			Help: "Browser page slots currently in use",
		},
		func() float64 {
			if sources.PagesInUse != nil {
				return float64(sources.PagesInUse())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordOperation records an actor operation
func (m *Metrics) RecordOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordBrowserLaunch records a browser start
func (m *Metrics) RecordBrowserLaunch() {
	if m == nil {
		return
	}
	m.BrowserLaunches.Inc()
}

// RecordKeepAlive records a keep-alive outcome
func (m *Metrics) RecordKeepAlive(outcome string) {
	if m == nil {
		return
	}
	m.KeepAlives.WithLabelValues(outcome).Inc()
}

// RecordSessionExpired records a session flipping to inactive
func (m *Metrics) RecordSessionExpired() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// RecordSync records the item counts of a sync run
func (m *Metrics) RecordSync(clips, meetings, transcripts int) {
	if m == nil {
		return
	}
	m.SyncItems.WithLabelValues("clips").Add(float64(clips))
	m.SyncItems.WithLabelValues("meetings").Add(float64(meetings))
	m.SyncItems.WithLabelValues("transcripts").Add(float64(transcripts))
}
