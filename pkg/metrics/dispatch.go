package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records assignment engine activity.
type DispatchMetrics struct {
	assignments       *prometheus.CounterVec
	workloadWarnings  prometheus.Counter
	directoryFailures *prometheus.CounterVec
	listDuration      prometheus.Histogram
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Assignment actions applied to service tasks.",
	}, []string{"action"})
	workloadWarnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_workload_warnings_total",
		Help: "Assignments that pushed a technician past the workload threshold.",
	})
	directoryFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_directory_failures_total",
		Help: "Technician directory lookups that did not validate.",
	}, []string{"mode"})
	listDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_list_duration_seconds",
		Help:    "Duration of task list queries in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(assignments, workloadWarnings, directoryFailures, listDuration)
	return &DispatchMetrics{
		assignments:       assignments,
		workloadWarnings:  workloadWarnings,
		directoryFailures: directoryFailures,
		listDuration:      listDuration,
	}
}

// IncAssignment increments the counter for the given assignment action.
func (d *DispatchMetrics) IncAssignment(action string) {
	if d == nil || d.assignments == nil {
		return
	}
	d.assignments.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncWorkloadWarning increments the workload warning counter.
func (d *DispatchMetrics) IncWorkloadWarning() {
	if d == nil || d.workloadWarnings == nil {
		return
	}
	d.workloadWarnings.Inc()
}

// IncDirectoryFailure increments the directory failure counter. Mode is
// "fail_open" or "fail_closed" depending on how the failure was handled.
func (d *DispatchMetrics) IncDirectoryFailure(mode string) {
	if d == nil || d.directoryFailures == nil {
		return
	}
	d.directoryFailures.WithLabelValues(normalizeLabel(mode)).Inc()
}

// ObserveListDuration records how long a task list query took.
func (d *DispatchMetrics) ObserveListDuration(duration time.Duration) {
	if d == nil || d.listDuration == nil {
		return
	}
	d.listDuration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
