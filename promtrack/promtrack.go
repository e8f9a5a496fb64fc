// Package promtrack provides a dimacros.PerformanceTracker that exports
// samples as Prometheus metrics.
//
// Install it once at start-up:
//
//    dimacros.SetPerformanceTracker(promtrack.New(prometheus.DefaultRegisterer))
package promtrack

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhump/dimacros"
)

const namespace = "dimacros"

// Tracker records tracked operations into Prometheus collectors.
type Tracker struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	slow     *prometheus.CounterVec
}

var _ dimacros.PerformanceTracker = (*Tracker)(nil)

// New creates a Tracker and registers its collectors with reg. A nil reg
// leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Elapsed time of operations annotated with @PerformanceTracked.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Tracked operations that returned an error.",
		}, []string{"operation"}),
		slow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_slow_total",
			Help:      "Tracked operations that exceeded their configured threshold.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(t.duration, t.errors, t.slow)
	}
	return t
}

// Record implements dimacros.PerformanceTracker.
func (t *Tracker) Record(s dimacros.Sample) {
	t.duration.WithLabelValues(s.Operation).Observe(s.Elapsed.Seconds())
	if s.Err != nil {
		t.errors.WithLabelValues(s.Operation).Inc()
	}
	if s.Slow {
		t.slow.WithLabelValues(s.Operation).Inc()
	}
}
