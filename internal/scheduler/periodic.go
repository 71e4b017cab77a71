// Package scheduler implements the periodic-task external contract the
// tracker consumes (spec §4.F/§6): given a name, an async job, and an
// interval, produce a handle with Start/Dispose. Built the way the
// teacher's own background loops are built — internal/queue/worker's
// logMetricsLoop and requeueLoop — a time.Ticker driven by a cancellable
// context, rather than an unstructured fire-and-forget goroutine.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/errortracker/internal/tracker"
)

// Factory produces Periodic tasks. It satisfies tracker.PeriodicTaskFactory.
type Factory struct {
	Logger *slog.Logger
}

// NewFactory returns a Factory. A nil logger falls back to slog.Default.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{Logger: logger}
}

func (f *Factory) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Create builds a Periodic task named name that runs job every interval.
// It satisfies tracker.PeriodicTaskFactory.
func (f *Factory) Create(name string, job func(ctx context.Context) error, interval time.Duration) tracker.Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Periodic{
		name:     name,
		job:      job,
		interval: interval,
		logger:   f.logger(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Periodic is a long-lived worker with an explicit start and stop, owning
// its own cancellation signal. Dispose waits for the current tick (if
// any) to finish before returning, and is idempotent.
type Periodic struct {
	name     string
	job      func(ctx context.Context) error
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce   sync.Once
	disposeOnce sync.Once
}

// Start begins the ticking loop in its own goroutine. Calling Start more
// than once is a no-op — the tracker only ever calls it once, during New.
func (p *Periodic) Start() {
	p.startOnce.Do(func() {
		go p.loop()
	})
}

func (p *Periodic) loop() {
	defer close(p.done)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-t.C:
			p.runOnce()
		}
	}
}

func (p *Periodic) runOnce() {
	// spec §7: errors inside the sweep are logged, not propagated; a
	// failing sweep must not stop the task.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("periodic task panic", "task", p.name, "panic", r)
		}
	}()

	if err := p.job(p.ctx); err != nil {
		p.logger.Error("periodic task error", "task", p.name, "err", err)
	}
}

// Dispose cancels the loop and waits for the in-flight invocation (if
// any) to complete. Idempotent and safe to call even if Start never ran.
func (p *Periodic) Dispose() {
	p.disposeOnce.Do(func() {
		p.cancel()
		p.startOnce.Do(func() {
			// Start never ran: nothing produced p.done, so synthesize
			// the closed signal Dispose waits on below.
			close(p.done)
		})
		<-p.done
	})
}
