package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	StageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftslice_stage_transitions_total",
		Help: "Total number of slicing stage transitions, by target stage.",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swiftslice_stage_seconds",
		Help:    "Time spent in each slicing stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ToolchainCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftslice_toolchain_calls_total",
		Help: "Total number of external toolchain invocations, by command and outcome.",
	}, []string{"command", "outcome"})

	ToolchainDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swiftslice_toolchain_seconds",
		Help:    "Wall time of external toolchain invocations.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
	}, []string{"command"})

	UnitFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftslice_unit_failures_total",
		Help: "Total number of modules or files omitted from a slice after a failed introspection.",
	}, []string{"unit"})

	SlicesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftslice_slices_total",
		Help: "Total number of project slices attempted, by final status.",
	}, []string{"status"})

	ModuleCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftslice_module_cache_hits_total",
		Help: "Total number of module introspections served from the in-memory cache.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftslice_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
