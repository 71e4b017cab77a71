package tracker

import (
	"fmt"
	"time"

	"github.com/geocoder89/errortracker/internal/trackerclock"
)

// CaughtFailure is an immutable (exception-snapshot, timestamp) pair. The
// exception is carried by reference; the tracker never inspects it beyond
// formatting it as a string for the diagnostics the poison sink reads.
type CaughtFailure struct {
	exception error
	time      time.Time
}

// newCaughtFailure constructs a CaughtFailure with time = clock.Now(). It
// fails with ErrInvalidArgument if exception is nil.
func newCaughtFailure(clock trackerclock.Clock, exception error) (CaughtFailure, error) {
	if exception == nil {
		return CaughtFailure{}, invalidArgument("exception must not be nil")
	}
	return CaughtFailure{
		exception: exception,
		time:      clock.Now(),
	}, nil
}

// Time returns the clock value captured at construction.
func (f CaughtFailure) Time() time.Time { return f.time }

// Exception returns the underlying error value.
func (f CaughtFailure) Exception() error { return f.exception }

// String renders "<time>: <exception-string>", the line format
// full_description joins one-per-failure.
func (f CaughtFailure) String() string {
	return fmt.Sprintf("%s: %s", f.time.Format(time.RFC3339Nano), f.exception.Error())
}
