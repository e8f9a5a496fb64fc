package dimacros

import (
	"sort"
	"sync"
	"time"
)

// Sample is one timed execution of a tracked operation.
type Sample struct {
	Operation string
	Elapsed   time.Duration
	Err       error
	// Slow is set when the operation exceeded the threshold configured in
	// its @PerformanceTracked annotation.
	Slow bool
}

// PerformanceTracker records samples produced by methods and functions
// annotated with @PerformanceTracked.
type PerformanceTracker interface {
	Record(s Sample)
}

var (
	trackerLock sync.RWMutex
	tracker     PerformanceTracker = NewMetrics()
)

// SetPerformanceTracker installs the tracker used by Track and returns the
// previous one. Passing nil restores a fresh in-memory Metrics tracker.
func SetPerformanceTracker(t PerformanceTracker) PerformanceTracker {
	if t == nil {
		t = NewMetrics()
	}
	trackerLock.Lock()
	defer trackerLock.Unlock()
	prev := tracker
	tracker = t
	return prev
}

// DefaultTracker returns the tracker currently used by Track.
func DefaultTracker() PerformanceTracker {
	trackerLock.RLock()
	defer trackerLock.RUnlock()
	return tracker
}

// Track runs fn and records its elapsed time under operation with the
// default tracker. A positive threshold marks slower executions as slow.
// The result of fn, or its error, is returned unchanged.
func Track[T any](operation string, threshold time.Duration, fn func() (T, error)) (T, error) {
	start := time.Now()
	res, err := fn()
	elapsed := time.Since(start)
	DefaultTracker().Record(Sample{
		Operation: operation,
		Elapsed:   elapsed,
		Err:       err,
		Slow:      threshold > 0 && elapsed > threshold,
	})
	return res, err
}

// OperationStats aggregates the samples recorded for one operation.
type OperationStats struct {
	Count  int
	Errors int
	Slow   int
	Total  time.Duration
	Max    time.Duration
}

// Average returns the mean elapsed time, or zero when nothing was recorded.
func (s OperationStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Metrics is an in-memory PerformanceTracker. It is the default tracker.
type Metrics struct {
	mu  sync.Mutex
	ops map[string]*OperationStats
}

// NewMetrics returns an empty Metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{ops: map[string]*OperationStats{}}
}

// Record implements PerformanceTracker.
func (m *Metrics) Record(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ops[s.Operation]
	if st == nil {
		st = &OperationStats{}
		m.ops[s.Operation] = st
	}
	st.Count++
	st.Total += s.Elapsed
	if s.Elapsed > st.Max {
		st.Max = s.Elapsed
	}
	if s.Err != nil {
		st.Errors++
	}
	if s.Slow {
		st.Slow++
	}
}

// Stats returns the statistics for one operation.
func (m *Metrics) Stats(operation string) (OperationStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.ops[operation]
	if !ok {
		return OperationStats{}, false
	}
	return *st, true
}

// Operations returns the sorted names of all recorded operations.
func (m *Metrics) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.ops))
	for n := range m.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset discards everything recorded so far.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = map[string]*OperationStats{}
}
