// Package metrics exposes Prometheus instrumentation for scheduling
// rounds: how long a round takes, how many tasks it places, and how many
// times the solver has run in total.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "flowsched"
	subsystem = "scheduler"
)

// SchedulerMetrics tracks the observable shape of scheduling rounds. Every
// field is registered against the default Prometheus registry at
// construction time, so a process must only ever construct one.
type SchedulerMetrics struct {
	roundDuration   prometheus.Histogram
	algorithmTime   prometheus.Histogram
	tasksScheduled  prometheus.Counter
	solverRunsTotal prometheus.Counter
	solverFailures  prometheus.Counter
}

func NewSchedulerMetrics() *SchedulerMetrics {
	m := &SchedulerMetrics{
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "round_duration_seconds",
			Help:      "Wall-clock time of a full scheduling round, graph update through delta application.",
			Buckets:   prometheus.DefBuckets,
		}),
		algorithmTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "algorithm_duration_seconds",
			Help:      "Time spent inside the min-cost-flow solver during a round.",
			Buckets:   prometheus.DefBuckets,
		}),
		tasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_scheduled_total",
			Help:      "Number of tasks placed, migrated or evicted across all rounds.",
		}),
		solverRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "solver_runs_total",
			Help:      "Number of solver invocations.",
		}),
		solverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "solver_failures_total",
			Help:      "Number of solver invocations that returned an error and aborted their round.",
		}),
	}

	prometheus.MustRegister(m.roundDuration)
	prometheus.MustRegister(m.algorithmTime)
	prometheus.MustRegister(m.tasksScheduled)
	prometheus.MustRegister(m.solverRunsTotal)
	prometheus.MustRegister(m.solverFailures)

	return m
}

// ObserveRound records one completed scheduling round. numScheduled is the
// number of deltas actually actioned; solverErr non-nil means the round was
// aborted by a solver failure and numScheduled/algorithmSeconds are not
// meaningful.
func (m *SchedulerMetrics) ObserveRound(totalSeconds, algorithmSeconds float64, numScheduled uint64, solverErr error) {
	m.solverRunsTotal.Inc()
	if solverErr != nil {
		m.solverFailures.Inc()
		return
	}
	m.roundDuration.Observe(totalSeconds)
	m.algorithmTime.Observe(algorithmSeconds)
	m.tasksScheduled.Add(float64(numScheduled))
}

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
