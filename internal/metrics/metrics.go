// Package metrics exposes the service's Prometheus metrics as a
// process-wide singleton registered through promauto.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	instance *Metrics
	once     sync.Once
)

// Metrics holds the Prometheus metrics for the display provider.
type Metrics struct {
	// API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Subscription cache metrics
	SubscriptionCacheHits   prometheus.Counter
	SubscriptionCacheMisses prometheus.Counter
	SubscriptionsEvicted    prometheus.Counter
	DSSUpsertsTotal         *prometheus.CounterVec
	ActiveSubscriptions     prometheus.Gauge

	// Upstream USS metrics
	USSFetchesTotal  *prometheus.CounterVec
	USSFetchDuration prometheus.Histogram

	// Observation metrics
	ObservedFlights    prometheus.Histogram
	ClusteredResponses prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// Get returns the metrics singleton.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riddisplay_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	m.RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riddisplay_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"method", "path"},
	)

	m.SubscriptionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riddisplay_subscription_cache_hits_total",
			Help: "Observation requests served by an existing DSS subscription",
		},
	)

	m.SubscriptionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riddisplay_subscription_cache_misses_total",
			Help: "Observation requests that required creating a DSS subscription",
		},
	)

	m.SubscriptionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riddisplay_subscriptions_evicted_total",
			Help: "Cached subscriptions dropped because their end time passed",
		},
	)

	m.DSSUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riddisplay_dss_upserts_total",
			Help: "DSS subscription upsert attempts",
		},
		[]string{"outcome"},
	)

	m.ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riddisplay_active_subscriptions",
			Help: "Cached DSS subscriptions after the last eviction scan",
		},
	)

	m.USSFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riddisplay_uss_fetches_total",
			Help: "USS flights endpoint fetch attempts",
		},
		[]string{"outcome"},
	)

	m.USSFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riddisplay_uss_fetch_duration_seconds",
			Help:    "USS flights fetch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	m.ObservedFlights = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riddisplay_observed_flights",
			Help:    "Flights returned per observation request",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)

	m.ClusteredResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riddisplay_clustered_responses_total",
			Help: "Observation responses returned as clusters instead of flights",
		},
	)

	m.NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riddisplay_isa_notifications_total",
			Help: "Inbound ISA notifications by kind",
		},
		[]string{"kind"},
	)

	return m
}
