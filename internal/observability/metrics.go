// Package observability holds the Prometheus metrics the app exports.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaderboard",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Reconciliation attempts by outcome.",
	}, []string{"outcome"})
	syncActivities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaderboard",
		Subsystem: "sync",
		Name:      "activities_total",
		Help:      "Activities seen by reconciliation, by what happened to them.",
	}, []string{"result"})
	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "leaderboard",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall time of a reconciliation attempt.",
		Buckets:   prometheus.DefBuckets,
	})
	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "leaderboard",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful reconciliation.",
	})
	activitiesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaderboard",
		Name:      "activities_skipped_total",
		Help:      "Activities left out of an aggregate because no usable timestamp resolved.",
	}, []string{"reason"})
	boardsComputed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "leaderboard",
		Name:      "weekly_boards_computed_total",
		Help:      "Weekly leaderboards computed.",
	})
)

func init() {
	prometheus.MustRegister(syncRuns, syncActivities, syncDuration, lastSyncGauge, activitiesSkipped, boardsComputed)
}

// Sync outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeUpstream = "upstream_error"
	OutcomeStorage  = "storage_error"
)

// RecordSync records one reconciliation attempt.
func RecordSync(outcome string, fetched, inserted, updated int, elapsed time.Duration) {
	syncRuns.WithLabelValues(outcome).Inc()
	syncActivities.WithLabelValues("fetched").Add(float64(fetched))
	syncActivities.WithLabelValues("inserted").Add(float64(inserted))
	syncActivities.WithLabelValues("updated").Add(float64(updated))
	syncDuration.Observe(elapsed.Seconds())
}

// RecordSyncSucceeded updates the last-success watermark.
func RecordSyncSucceeded(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSyncGauge.Set(float64(ts.Unix()))
}

// RecordActivitySkipped counts an activity dropped from an aggregate.
func RecordActivitySkipped(reason string) {
	activitiesSkipped.WithLabelValues(reason).Inc()
}

// RecordBoardComputed counts a weekly leaderboard computation.
func RecordBoardComputed() {
	boardsComputed.Inc()
}
