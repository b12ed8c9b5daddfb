package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "waterledger_"

var (
	registerOnce sync.Once

	deltaApplied   *prometheus.CounterVec
	ledgerDrift    *prometheus.CounterVec
	streamWatches  prometheus.Gauge
	streamPushes   *prometheus.CounterVec
	decodeFailures *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the process metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		deltaApplied = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "delta_applied_total",
				Help: "Balance deltas applied by record kind and operation",
			},
			[]string{"record", "operation"},
		)
		ledgerDrift = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_drift_total",
				Help: "Delta applications that failed after their record write succeeded",
			},
			[]string{"record"},
		)
		streamWatches = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_active_watches",
				Help: "Currently active change-feed watches",
			},
		)
		streamPushes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_pushes_total",
				Help: "Snapshot pushes delivered to stream observers by kind",
			},
			[]string{"kind"},
		)
		decodeFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "decode_failures_total",
				Help: "Remote documents that failed to decode, by collection",
			},
			[]string{"collection"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by status class",
			},
			[]string{"status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		prometheus.MustRegister(
			deltaApplied,
			ledgerDrift,
			streamWatches,
			streamPushes,
			decodeFailures,
			httpRequests,
			httpLatency,
		)
	})
}

// DeltaApplied counts one successfully applied balance delta.
func DeltaApplied(record, operation string) {
	if deltaApplied != nil {
		deltaApplied.WithLabelValues(record, operation).Inc()
	}
}

// LedgerDrift counts a delta application that failed after its triggering
// record write had already succeeded.
func LedgerDrift(record string) {
	if ledgerDrift != nil {
		ledgerDrift.WithLabelValues(record).Inc()
	}
}

// WatchOpened tracks an activated change-feed watch.
func WatchOpened() {
	if streamWatches != nil {
		streamWatches.Inc()
	}
}

// WatchClosed tracks a deactivated change-feed watch.
func WatchClosed() {
	if streamWatches != nil {
		streamWatches.Dec()
	}
}

// StreamPush counts one snapshot push to observers.
func StreamPush(kind string) {
	if streamPushes != nil {
		streamPushes.WithLabelValues(kind).Inc()
	}
}

// DecodeFailure counts one swallowed decode error.
func DecodeFailure(collection string) {
	if decodeFailures != nil {
		decodeFailures.WithLabelValues(collection).Inc()
	}
}

// HTTPRequest records one served request.
func HTTPRequest(status string, seconds float64) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(status).Observe(seconds)
	}
}
