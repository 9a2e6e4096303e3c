// Package metrics exposes prometheus collectors for the sync core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RecordsSaved counts workout records accepted by the facade.
	RecordsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "workout",
		Name:      "records_saved_total",
		Help:      "Number of workout records written to the local store.",
	})

	// ReplaySynced counts queue items confirmed by the remote service.
	ReplaySynced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "replay",
		Name:      "items_synced_total",
		Help:      "Number of sync queue items confirmed by the remote service.",
	})

	// ReplayFailed counts failed sync attempts that stayed queued.
	ReplayFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "replay",
		Name:      "items_failed_total",
		Help:      "Number of sync attempts that failed and remain queued for retry.",
	})

	// ReplayAbandoned counts items dropped at the retry ceiling.
	ReplayAbandoned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "replay",
		Name:      "items_abandoned_total",
		Help:      "Number of sync queue items dropped after exhausting retries.",
	})

	// ReplayPassDuration times a full queue drain pass.
	ReplayPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liftlog",
		Subsystem: "replay",
		Name:      "pass_duration_seconds",
		Help:      "Time spent draining the sync queue against the remote service.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	// QueueDepth tracks the number of pending sync queue items.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlog",
		Subsystem: "syncqueue",
		Name:      "depth",
		Help:      "Current number of pending mutations in the sync queue.",
	})
)

func init() {
	prometheus.MustRegister(
		RecordsSaved,
		ReplaySynced,
		ReplayFailed,
		ReplayAbandoned,
		ReplayPassDuration,
		QueueDepth,
	)
}
