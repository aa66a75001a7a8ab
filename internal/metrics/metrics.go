package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	CycleCount        prometheus.Counter
	FetchedCount      prometheus.Counter
	ClassifiedCount   *prometheus.CounterVec
	DedupSkips        prometheus.Counter
	RepliesSent       prometheus.Counter
	NotificationsSent prometheus.Counter
	Failures          prometheus.Counter
	CycleDuration     prometheus.Histogram
}

// NewMetrics creates metrics registered with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered with reg. Tests pass a
// fresh registry so instances never collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CycleCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartmailer_cycles_total",
			Help: "Total number of processing cycles started",
		}),
		FetchedCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartmailer_messages_fetched_total",
			Help: "Total number of messages fetched from the mailbox",
		}),
		ClassifiedCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartmailer_messages_classified_total",
			Help: "Total number of messages classified, by category",
		}, []string{"category"}),
		DedupSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartmailer_dedup_skips_total",
			Help: "Total number of messages skipped because a terminal record already existed",
		}),
		RepliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartmailer_auto_replies_sent_total",
			Help: "Total number of automatic replies sent",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartmailer_notifications_sent_total",
			Help: "Total number of urgent notifications sent",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartmailer_message_failures_total",
			Help: "Total number of messages that ended in a failed status",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartmailer_cycle_duration_seconds",
			Help:    "Time spent per processing cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
