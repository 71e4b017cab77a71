package observability

import (
	"sync/atomic"
)

// TrackerMetrics holds lock-free counters for the error tracker's hot
// path, mirroring the teacher's JobMetrics shape (atomics incremented
// inline, snapshotted for periodic logging) but for register/dead-letter/
// evict events instead of job claim/done/fail/retry events.
type TrackerMetrics struct {
	registered      atomic.Uint64
	registeredFinal atomic.Uint64
	deadLettered    atomic.Uint64
	evicted         atomic.Uint64
}

// NewTrackerMetrics returns a zeroed TrackerMetrics.
func NewTrackerMetrics() *TrackerMetrics {
	return &TrackerMetrics{}
}

func (m *TrackerMetrics) IncRegistered(final bool) {
	m.registered.Add(1)
	if final {
		m.registeredFinal.Add(1)
	}
}

func (m *TrackerMetrics) IncDeadLettered() {
	m.deadLettered.Add(1)
}

func (m *TrackerMetrics) IncEvicted(n uint64) {
	if n == 0 {
		return
	}
	m.evicted.Add(n)
}

// TrackerMetricsSnapshot is a point-in-time read of TrackerMetrics.
type TrackerMetricsSnapshot struct {
	Registered      uint64
	RegisteredFinal uint64
	DeadLettered    uint64
	Evicted         uint64
}

func (m *TrackerMetrics) Snapshot() TrackerMetricsSnapshot {
	return TrackerMetricsSnapshot{
		Registered:      m.registered.Load(),
		RegisteredFinal: m.registeredFinal.Load(),
		DeadLettered:    m.deadLettered.Load(),
		Evicted:         m.evicted.Load(),
	}
}
