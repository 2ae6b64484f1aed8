package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames by decode outcome.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsentry_frames_total",
			Help: "Total number of capture frames processed, by decode outcome",
		},
		[]string{"outcome"},
	)

	// SuspiciousEventsTotal counts classifier hits by event type.
	SuspiciousEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsentry_suspicious_events_total",
			Help: "Total number of suspicious events raised, by type",
		},
		[]string{"type"},
	)

	// AnalysisRunsTotal counts runs by final status (complete, partial, failed).
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsentry_analysis_runs_total",
			Help: "Total number of analysis runs, by status",
		},
		[]string{"status"},
	)

	// FragmentGroupsPerRun tracks how many fragment groups a run accumulated.
	FragmentGroupsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capsentry_fragment_groups",
			Help:    "Number of distinct IPv4 identification values with fragments per run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 .. 16384
		},
	)
)

const runFailed = "failed"
