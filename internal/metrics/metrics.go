package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_correlator_runs_total",
			Help: "Total number of dataset correlation runs",
		},
		[]string{"result"}, // success, error, locked
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_correlator_run_duration_seconds",
			Help:    "Duration of dataset correlation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Rule metrics
	EventsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_correlator_events_scanned_total",
			Help: "Total number of events considered by a rule",
		},
		[]string{"rule"},
	)

	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_correlator_incidents_created_total",
			Help: "Total number of incidents created",
		},
		[]string{"rule", "severity"},
	)

	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_correlator_duplicates_skipped_total",
			Help: "Total number of candidate incidents skipped because the natural key already existed",
		},
		[]string{"rule"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_correlator_notifications_total",
			Help: "Total number of notifications published",
		},
		[]string{"subject", "status"},
	)

	// Worker metrics
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_correlator_jobs_total",
			Help: "Total number of correlation jobs received",
		},
		[]string{"status"}, // completed, failed, rejected
	)
)
