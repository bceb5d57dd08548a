// Package metrics exposes Prometheus collectors for the posting pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "everybook_cycles_total",
		Help: "Posting cycles by final state",
	}, []string{"outcome"})

	CycleAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "everybook_cycle_attempts",
		Help:    "Subject attempts used per cycle",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 35},
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "everybook_cycle_duration_seconds",
		Help:    "Wall time of a posting cycle",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	CandidatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "everybook_candidates_rejected_total",
		Help: "Book candidates rejected by validation reason",
	}, []string{"reason"})

	SubjectErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "everybook_subject_errors_total",
		Help: "Failed subject attempts by stage",
	}, []string{"stage"})

	PostsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "everybook_posts_total",
		Help: "Publish attempts by status",
	}, []string{"status"})

	LastPostTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "everybook_last_post_timestamp_seconds",
		Help: "Unix time of the last successful post",
	})
)

// ObserveCycle records the outcome of one finished cycle.
func ObserveCycle(outcome string, attempts int, elapsed time.Duration) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleAttempts.Observe(float64(attempts))
	CycleDuration.Observe(elapsed.Seconds())
}

// ObserveRejection counts n candidates rejected for reason.
func ObserveRejection(reason string, n int) {
	CandidatesRejected.WithLabelValues(reason).Add(float64(n))
}

// ObserveSubjectError counts an attempt lost at stage.
func ObserveSubjectError(stage string) {
	SubjectErrors.WithLabelValues(stage).Inc()
}

// ObservePublish counts a publish and stamps the time on success.
func ObservePublish(err error, at time.Time) {
	if err != nil {
		PostsPublished.WithLabelValues("error").Inc()
		return
	}
	PostsPublished.WithLabelValues("ok").Inc()
	LastPostTimestamp.Set(float64(at.Unix()))
}
