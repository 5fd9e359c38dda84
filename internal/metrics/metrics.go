package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the sync metrics of one process run on its own registry,
// so that a scheduled run can dump them to a node-exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	SyncCount       *prometheus.CounterVec
	SyncFailed      *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	LocksRemoved    *prometheus.CounterVec
	LocksFailed     *prometheus.CounterVec
	LastSyncEnd     *prometheus.GaugeVec
	LastSyncSuccess *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		SyncCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitmirror_sync_total",
				Help: "Total number of sync operations by action",
			},
			[]string{"action"},
		),
		SyncFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitmirror_sync_failed_total",
				Help: "Total number of failed sync operations by phase",
			},
			[]string{"phase"},
		),
		SyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gitmirror_sync_duration_seconds",
				Help:    "Sync duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"repo"},
		),
		LocksRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitmirror_stale_locks_removed_total",
				Help: "Total number of stale lock files removed",
			},
			[]string{"marker"},
		),
		LocksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitmirror_stale_locks_failed_total",
				Help: "Total number of stale lock files that could not be removed",
			},
			[]string{"marker"},
		),
		LastSyncEnd: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gitmirror_last_sync_end_timestamp",
				Help: "Unix timestamp of when the last sync of a repository ended",
			},
			[]string{"repo"},
		),
		LastSyncSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gitmirror_last_sync_success",
				Help: "Whether the last sync of a repository succeeded (1) or failed (0)",
			},
			[]string{"repo"},
		),
	}
}

// SyncSucceeded records a finished sync.
func (r *Recorder) SyncSucceeded(repo, action string, duration time.Duration) {
	r.SyncCount.WithLabelValues(action).Inc()
	r.SyncDuration.WithLabelValues(repo).Observe(duration.Seconds())
	r.LastSyncEnd.WithLabelValues(repo).SetToCurrentTime()
	r.LastSyncSuccess.WithLabelValues(repo).Set(1)
}

// SyncFailedAt records a sync that failed in phase.
func (r *Recorder) SyncFailedAt(repo, phase string, duration time.Duration) {
	if phase == "" {
		phase = "unknown"
	}
	r.SyncCount.WithLabelValues("failed").Inc()
	r.SyncFailed.WithLabelValues(phase).Inc()
	r.SyncDuration.WithLabelValues(repo).Observe(duration.Seconds())
	r.LastSyncEnd.WithLabelValues(repo).SetToCurrentTime()
	r.LastSyncSuccess.WithLabelValues(repo).Set(0)
}

// LockRemoved counts one removed lock marker.
func (r *Recorder) LockRemoved(marker string) {
	r.LocksRemoved.WithLabelValues(marker).Inc()
}

// LockFailed counts one lock marker that could not be removed.
func (r *Recorder) LockFailed(marker string) {
	r.LocksFailed.WithLabelValues(marker).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current values in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %q: %w", path, err)
	}
	return nil
}
