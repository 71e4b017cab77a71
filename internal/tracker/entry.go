package tracker

import (
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/errortracker/internal/trackerclock"
)

// trackingEntry is the per-message aggregate: an append-only, ordered
// sequence of failures plus a sticky "final" flag. It is logically
// immutable — every mutation produces a replacement value the registry
// swaps in, never an in-place edit — so a reader holding a *trackingEntry
// it copied out of the registry never observes a half-built update.
type trackingEntry struct {
	failures []CaughtFailure
	final    bool
}

// extend returns the entry that should replace prev after a further
// register_error call. If prev is already final, the sticky-final rule
// applies: prev itself is returned unchanged, no new failure appended.
// Otherwise a new entry is returned with newFailure appended.
func (prev *trackingEntry) extend(newFailure CaughtFailure, final bool) *trackingEntry {
	if prev.final {
		return prev
	}
	next := make([]CaughtFailure, len(prev.failures)+1)
	copy(next, prev.failures)
	next[len(prev.failures)] = newFailure
	return &trackingEntry{
		failures: next,
		final:    final,
	}
}

// count returns the number of failures recorded so far.
func (e *trackingEntry) count() int {
	return len(e.failures)
}

// lastFailureTime returns the latest timestamp among the recorded
// failures. This is normally the last element, but a clock that jumped
// backward between two failures can leave an earlier element later.
func (e *trackingEntry) lastFailureTime() time.Time {
	latest := e.failures[0].time
	for _, f := range e.failures[1:] {
		if f.time.After(latest) {
			latest = f.time
		}
	}
	return latest
}

// elapsedSinceLastFailure implements spec's
// elapsed_since_last_failure = now - max(failures[*].time), clamped to zero
// by the clock's ElapsedSince.
func (e *trackingEntry) elapsedSinceLastFailure(clock trackerclock.Clock) time.Duration {
	return clock.ElapsedSince(e.lastFailureTime())
}

// shortDescription renders "<n> unhandled exceptions".
func (e *trackingEntry) shortDescription() string {
	return formatCount(e.count())
}

// fullDescription renders "<n> unhandled exceptions: <line1>\n<line2>\n..."
// with each line "<time>: <exception-string>" in failures order.
func (e *trackingEntry) fullDescription() string {
	lines := make([]string, len(e.failures))
	for i, f := range e.failures {
		lines[i] = f.String()
	}
	return formatCount(e.count()) + ": " + strings.Join(lines, "\n")
}

// exceptions returns a stable snapshot of the exception values in
// failures order, decoupled from the registry so later register_error
// calls cannot mutate what the caller already observed.
func (e *trackingEntry) exceptions() []error {
	out := make([]error, len(e.failures))
	for i, f := range e.failures {
		out[i] = f.exception
	}
	return out
}

func formatCount(n int) string {
	return strconv.Itoa(n) + " unhandled exceptions"
}
