package tracker

import (
	"context"
	"time"
)

// Task is the handle a PeriodicTaskFactory hands back: Start begins the
// ticking loop, Dispose stops it. Dispose must wait for the in-flight
// invocation to finish (or abandon it after a bounded time) and must
// guarantee no further invocation begins afterward. Dispose must be
// idempotent.
type Task interface {
	Start()
	Dispose()
}

// PeriodicTaskFactory is the external scheduler contract from spec §4.F /
// §6: given a name, an async job, and an interval, produce a Task. The
// tracker owns the Task's lifecycle (it calls Start when it initializes
// and Dispose when it is disposed) but never implements the scheduling
// loop itself — that is this collaborator's job.
type PeriodicTaskFactory interface {
	Create(name string, job func(ctx context.Context) error, interval time.Duration) Task
}
