// Package metrics exposes the scheduler's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TotalAssignments is the running count of scan ranges assigned to an
	// executor, cumulative across all scheduling calls. Corresponds to the
	// "scheduler.total-assignments" gauge required by spec §6.
	TotalAssignments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_total_assignments",
			Help: "Total number of scan ranges assigned to an executor backend",
		},
	)

	// LocalAssignments is the subset of TotalAssignments that landed on a
	// backend hosting a replica (cache-local or disk-local). Corresponds to
	// "scheduler.local-assignments".
	LocalAssignments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_local_assignments",
			Help: "Total number of scan ranges assigned to a backend with a local replica",
		},
	)

	// RemoteAssignments counts scan ranges that had no local candidate.
	RemoteAssignments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_remote_assignments",
			Help: "Total number of scan ranges assigned without a local replica",
		},
	)

	// ClusterMembershipBackendsTotal tracks the number of distinct backend
	// IPs (BackendConfig.Size) in the published snapshot, executors and
	// coordinator-only backends alike. Corresponds to
	// "cluster-membership.backends.total".
	ClusterMembershipBackendsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cluster_membership_backends_total",
			Help: "Number of distinct backend IPs in the current membership snapshot",
		},
	)

	// SchedulingLatency times a full Scheduler.Schedule call.
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_schedule_duration_seconds",
			Help:    "Time taken to produce a QuerySchedule, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ScanAssignmentLatency times a single ScanAssigner.AssignScanRanges
	// call for one plan node.
	ScanAssignmentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_scan_assignment_duration_seconds",
			Help:    "Time taken to assign the scan ranges of one plan node, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MembershipDeltasTotal counts processed topic entries by outcome: one
	// "applied" or "decode_failed" per non-tombstone entry, plus one
	// "duplicate_id" per duplicate registration resolved on publish.
	MembershipDeltasTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_membership_deltas_total",
			Help: "Total number of membership topic entries processed, by outcome",
		},
		[]string{"outcome"}, // applied, decode_failed, duplicate_id
	)
)

func init() {
	prometheus.MustRegister(
		TotalAssignments,
		LocalAssignments,
		RemoteAssignments,
		ClusterMembershipBackendsTotal,
		SchedulingLatency,
		ScanAssignmentLatency,
		MembershipDeltasTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
