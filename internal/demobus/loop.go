package demobus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geocoder89/errortracker/internal/deadletter"
	"github.com/geocoder89/errortracker/internal/observability"
	"github.com/geocoder89/errortracker/internal/tracker"
)

var tracer = otel.Tracer("errortracker-demo")

// Tracker is the subset of tracker.ErrorTracker the delivery loop drives.
type Tracker interface {
	HasFailedTooManyTimes(id string) bool
	RegisterError(ctx context.Context, id string, exception error, final bool) error
	ShortDescription(id string) (string, bool)
	FullDescription(id string) (string, bool)
	Exceptions(id string) []error
	CleanUp(id string)
}

var _ Tracker = (*tracker.ErrorTracker)(nil)

// Loop runs the demo delivery worker: pop a simulated delivery, consult
// the tracker, run the (simulated) handler, then register or clean up.
type Loop struct {
	Queue      *Queue
	Tracker    Tracker
	DeadLetter *deadletter.Store
	Metrics    *observability.TrackerMetrics
	Prom       *observability.Prom
	Logger     *slog.Logger
}

func (l *Loop) incRegistered(final bool) {
	if l.Metrics != nil {
		l.Metrics.IncRegistered(final)
	}
	if l.Prom != nil {
		l.Prom.ErrorsRegisteredTotal.WithLabelValues(strconv.FormatBool(final)).Inc()
	}
}

func (l *Loop) incDeadLettered() {
	if l.Metrics != nil {
		l.Metrics.IncDeadLettered()
	}
	if l.Prom != nil {
		l.Prom.DeadLetteredTotal.Inc()
	}
}

// RunOnce processes at most one delivery. It returns (false, nil) when
// the queue had nothing to deliver within the poll timeout.
func (l *Loop) RunOnce(ctx context.Context, pollTimeout time.Duration) (bool, error) {
	d, err := l.Queue.Pop(ctx, pollTimeout)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ctx, span := tracer.Start(ctx, "demo.deliver",
		trace.WithAttributes(attribute.String("message.id", d.MessageID)))
	defer span.End()

	if l.Tracker.HasFailedTooManyTimes(d.MessageID) {
		l.poison(ctx, d)
		span.SetAttributes(attribute.String("result", "poisoned_before_dispatch"))
		return true, nil
	}

	if err := l.handle(d); err != nil {
		span.RecordError(err)
		registerErr := l.Tracker.RegisterError(ctx, d.MessageID, err, false)
		if registerErr != nil {
			l.Logger.ErrorContext(ctx, "demo.register_error_failed", "message_id", d.MessageID, "err", registerErr)
		}
		l.incRegistered(false)

		if l.Tracker.HasFailedTooManyTimes(d.MessageID) {
			l.poison(ctx, d)
			span.SetAttributes(attribute.String("result", "poisoned"))
		} else {
			if err := l.Queue.Requeue(ctx, d); err != nil {
				l.Logger.ErrorContext(ctx, "demo.requeue_failed", "message_id", d.MessageID, "err", err)
			}
			span.SetAttributes(attribute.String("result", "requeued"))
		}
		span.SetStatus(codes.Error, err.Error())
		return true, nil
	}

	l.Tracker.CleanUp(d.MessageID)
	span.SetAttributes(attribute.String("result", "done"))
	span.SetStatus(codes.Ok, "done")
	return true, nil
}

// handle simulates the delivery handler: it fails until the
// configured attempt threshold, to exercise both the retry path and the
// success path.
func (l *Loop) handle(d Delivery) error {
	if d.FailUntilAttempt <= 0 {
		return nil
	}

	exceptions := l.Tracker.Exceptions(d.MessageID)
	attemptNumber := len(exceptions) + 1
	if attemptNumber >= d.FailUntilAttempt {
		return nil
	}
	return fmt.Errorf("simulated handler failure for %s (attempt %d)", d.MessageID, attemptNumber)
}

func (l *Loop) poison(ctx context.Context, d Delivery) {
	short, _ := l.Tracker.ShortDescription(d.MessageID)
	full, _ := l.Tracker.FullDescription(d.MessageID)

	exceptionStrings := make([]string, 0)
	for _, e := range l.Tracker.Exceptions(d.MessageID) {
		exceptionStrings = append(exceptionStrings, e.Error())
	}

	if l.DeadLetter != nil {
		if err := l.DeadLetter.Record(ctx, deadletter.Annotation{
			MessageID:        d.MessageID,
			ShortDescription: short,
			FullDescription:  full,
			Exceptions:       exceptionStrings,
		}); err != nil {
			l.Logger.ErrorContext(ctx, "demo.deadletter_record_failed", "message_id", d.MessageID, "err", err)
		}
	}

	l.incDeadLettered()

	l.Tracker.CleanUp(d.MessageID)

	l.Logger.WarnContext(ctx, "demo.dead_lettered", "message_id", d.MessageID, "short_description", short)
}
