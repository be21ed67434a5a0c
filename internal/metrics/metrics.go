// Package metrics defines the Prometheus collectors for content lifecycle operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "content"

// Metrics groups the collectors updated by the orchestrators.
type Metrics struct {
	Uploads            *prometheus.CounterVec
	Deletes            *prometheus.CounterVec
	Compensations      *prometheus.CounterVec
	BlobDeleteFailures prometheus.Counter
	Notifications      *prometheus.CounterVec
	OrphansSwept       *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		Deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Delete attempts by outcome.",
		}, []string{"outcome"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensating_deletes_total",
			Help:      "Blob deletes issued to undo a failed upload, by result.",
		}, []string{"result"}),
		BlobDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_commit_blob_delete_failures_total",
			Help:      "Blob deletes that failed after the record was already removed.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_notifications_total",
			Help:      "Notifications written by fan-out, by outcome.",
		}, []string{"outcome"}),
		OrphansSwept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_swept_total",
			Help:      "Orphaned blob retries by result.",
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_stage_duration_seconds",
			Help:      "Time spent in each upload stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.Uploads,
		m.Deletes,
		m.Compensations,
		m.BlobDeleteFailures,
		m.Notifications,
		m.OrphansSwept,
		m.StageDuration,
	)
	return m
}

// NewNop returns collectors registered with a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
