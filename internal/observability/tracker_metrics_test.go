package observability

import "testing"

func TestTrackerMetricsIncRegistered(t *testing.T) {
	m := NewTrackerMetrics()

	m.IncRegistered(false)
	m.IncRegistered(true)
	m.IncRegistered(true)

	snap := m.Snapshot()
	if snap.Registered != 3 {
		t.Fatalf("Registered = %d, want 3", snap.Registered)
	}
	if snap.RegisteredFinal != 2 {
		t.Fatalf("RegisteredFinal = %d, want 2", snap.RegisteredFinal)
	}
}

func TestTrackerMetricsIncDeadLettered(t *testing.T) {
	m := NewTrackerMetrics()
	m.IncDeadLettered()
	m.IncDeadLettered()

	if got := m.Snapshot().DeadLettered; got != 2 {
		t.Fatalf("DeadLettered = %d, want 2", got)
	}
}

func TestTrackerMetricsIncEvictedZeroIsNoop(t *testing.T) {
	m := NewTrackerMetrics()
	m.IncEvicted(0)
	m.IncEvicted(5)

	if got := m.Snapshot().Evicted; got != 5 {
		t.Fatalf("Evicted = %d, want 5", got)
	}
}

func TestTrackerMetricsSnapshotIsIndependent(t *testing.T) {
	m := NewTrackerMetrics()
	m.IncRegistered(false)

	snap := m.Snapshot()
	m.IncRegistered(false)

	if snap.Registered != 1 {
		t.Fatalf("snapshot mutated by later increment: Registered = %d, want 1", snap.Registered)
	}
}
