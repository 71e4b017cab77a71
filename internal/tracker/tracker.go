// Package tracker implements the delivery-attempt error tracker: the
// subsystem consulted once per delivery attempt and updated whenever a
// handler fails, that decides whether a message should be retried again
// or moved to a poison/dead-letter sink.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geocoder89/errortracker/internal/trackerclock"
)

// tracer is the package-level otel tracer component 4.H describes:
// register_error and the cleanup sweep each open a span against it.
// Like the teacher's own package-level tracers, this defaults to a
// no-op implementation until something calls otel.SetTracerProvider,
// so the tracker never blocks on a missing collector.
var tracer = otel.Tracer("errortracker")

// ErrorTracker is the concurrent mapping from message id to TrackingEntry
// described in spec §3/§4.D. It exclusively owns the registry and the
// cleanup task handle; the clock, logger, and scheduler are collaborators
// it does not own.
//
// Its own lifecycle (spec §4.E) is Constructed -> Initialized (cleanup
// running) -> Disposed (cleanup stopped). New never returns a tracker
// that hasn't reached Initialized, so the only latch Dispose needs is
// "already disposed".
type ErrorTracker struct {
	cfg    Config
	clock  trackerclock.Clock
	logger Logger

	mu      sync.Mutex
	entries map[string]*trackingEntry
	cleanup Task

	disposed     atomic.Bool
	evictedTotal atomic.Uint64
}

// New constructs an ErrorTracker. It fails with ErrInvalidArgument if
// cfg.MaxDeliveryAttempts < 1 or any required collaborator (clock,
// logger, taskFactory) is nil. On success it immediately starts the
// cleanup task (Constructed -> Initialized).
func New(cfg Config, clock trackerclock.Clock, logger Logger, taskFactory PeriodicTaskFactory) (*ErrorTracker, error) {
	if cfg.MaxDeliveryAttempts < 1 {
		return nil, invalidArgument("max_delivery_attempts must be >= 1")
	}
	if clock == nil {
		return nil, invalidArgument("clock collaborator is required")
	}
	if logger == nil {
		return nil, invalidArgument("logger collaborator is required")
	}
	if taskFactory == nil {
		return nil, invalidArgument("periodic task factory collaborator is required")
	}

	cfg = cfg.withDefaults()

	t := &ErrorTracker{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		entries: make(map[string]*trackingEntry),
	}

	t.cleanup = taskFactory.Create(cfg.CleanupTaskName, t.sweep, cfg.CleanupInterval)
	t.cleanup.Start()

	return t, nil
}

// RegisterError implements spec §4.D.1. It atomically inserts a fresh
// entry or replaces the existing one via trackingEntry.extend, honoring
// the sticky-final rule, then emits a warning log. The log is unconditional
// per spec §9's open question resolution: it fires even when the entry
// was already final and therefore did not actually change.
func (t *ErrorTracker) RegisterError(ctx context.Context, id string, exception error, final bool) error {
	ctx, span := tracer.Start(ctx, "tracker.register_error")
	defer span.End()

	if id == "" {
		return invalidArgument("message id must not be empty")
	}
	if exception == nil {
		return invalidArgument("exception must not be nil")
	}

	failure, err := newCaughtFailure(t.clock, exception)
	if err != nil {
		return err
	}

	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok {
		entry = &trackingEntry{failures: []CaughtFailure{failure}, final: final}
	} else {
		entry = entry.extend(failure, final)
	}
	t.entries[id] = entry
	n := entry.count()
	isFinal := entry.final
	t.mu.Unlock()

	span.SetAttributes(
		attribute.String("message.id", id),
		attribute.Int("error.count", n),
		attribute.Bool("error.final", isFinal),
	)

	t.warnUnhandled(ctx, id, n, isFinal, exception)

	return nil
}

func (t *ErrorTracker) warnUnhandled(ctx context.Context, id string, n int, final bool, exception error) {
	defer func() {
		// spec §7: a transient log failure must not break message delivery.
		_ = recover()
	}()

	template := "Unhandled exception {errorNumber} while handling message {messageId}"
	if final {
		template += " (FINAL)"
	}
	t.logger.Warn(ctx, exception, template, n, id)
}

// HasFailedTooManyTimes implements spec §4.D.2. It never returns an error:
// absence of an entry is "false", not a failure.
func (t *ErrorTracker) HasFailedTooManyTimes(id string) bool {
	t.mu.Lock()
	entry, ok := t.entries[id]
	t.mu.Unlock()

	if !ok {
		return false
	}
	return entry.final || entry.count() >= t.cfg.MaxDeliveryAttempts
}

// ShortDescription implements spec §4.D.3.
func (t *ErrorTracker) ShortDescription(id string) (string, bool) {
	t.mu.Lock()
	entry, ok := t.entries[id]
	t.mu.Unlock()

	if !ok {
		return "", false
	}
	return entry.shortDescription(), true
}

// FullDescription implements spec §4.D.4.
func (t *ErrorTracker) FullDescription(id string) (string, bool) {
	t.mu.Lock()
	entry, ok := t.entries[id]
	t.mu.Unlock()

	if !ok {
		return "", false
	}
	return entry.fullDescription(), true
}

// Exceptions implements spec §4.D.5: a stable, registry-decoupled
// snapshot of the exception values in failures order.
func (t *ErrorTracker) Exceptions(id string) []error {
	t.mu.Lock()
	entry, ok := t.entries[id]
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return entry.exceptions()
}

// CleanUp implements spec §4.D.6: removes the entry for id if present,
// a no-op otherwise. Never errors.
func (t *ErrorTracker) CleanUp(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Dispose stops the cleanup task and latches so a repeat call, or any
// call after disposal, is a no-op rather than restarting the sweep.
// RegisterError / HasFailedTooManyTimes / CleanUp remain valid after
// Dispose; they just no longer have a live cleanup task behind them.
func (t *ErrorTracker) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.cleanup.Dispose()
}

// sweep runs one cleanup pass: snapshot the registry, evict entries idle
// longer than ReclaimIdleAfter. Per spec §4.E/§9 this tolerates a bounded
// race against a concurrent RegisterError for the same id — a freshly
// appended failure can be evicted between snapshot and removal; the
// caller simply recreates the entry on its next failure.
func (t *ErrorTracker) sweep(ctx context.Context) error {
	_, span := tracer.Start(ctx, "tracker.cleanup_sweep")
	defer span.End()

	type candidate struct {
		id    string
		entry *trackingEntry
	}

	t.mu.Lock()
	snapshot := make([]candidate, 0, len(t.entries))
	for id, entry := range t.entries {
		snapshot = append(snapshot, candidate{id: id, entry: entry})
	}
	t.mu.Unlock()

	evicted := 0
	for _, c := range snapshot {
		if c.entry.elapsedSinceLastFailure(t.clock) <= t.cfg.ReclaimIdleAfter {
			continue
		}

		t.mu.Lock()
		if _, stillPresent := t.entries[c.id]; stillPresent {
			delete(t.entries, c.id)
			t.evictedTotal.Add(1)
			evicted++
		}
		t.mu.Unlock()
	}

	span.SetAttributes(attribute.Int("cleanup.evicted", evicted))

	return nil
}

// Size reports the current registry size, used by the metrics gauge.
func (t *ErrorTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// EvictedTotal reports the cumulative number of entries the cleanup
// sweep has reclaimed since construction. Callers sampling this
// periodically (e.g. to drive a Prometheus counter) should track the
// delta between samples, not the raw value.
func (t *ErrorTracker) EvictedTotal() uint64 {
	return t.evictedTotal.Load()
}
