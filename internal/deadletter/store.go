// Package deadletter persists the terminal poison annotation for a
// message the tracker has declared has_failed_too_many_times — the
// durable side of the "poison step reads short_description /
// full_description / exceptions to annotate the dead-lettered message"
// flow described in spec §2. Built the way the teacher's
// internal/repo/postgres repos are built: a thin struct wrapping a
// *pgxpool.Pool, upsert via insert-then-conditional-update, unique
// violations classified with errors.As(*pgconn.PgError).
package deadletter

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/errortracker/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Annotation is what the tracker's poison step reads off the registry
// before a message is moved to the dead-letter sink.
type Annotation struct {
	MessageID        string
	ShortDescription string
	FullDescription  string
	Exceptions       []string
}

// Store persists Annotations to Postgres.
type Store struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

// NewStore wraps pool. prom is optional; when nil, queries run
// unobserved.
func NewStore(pool *pgxpool.Pool, prom *observability.Prom) *Store {
	return &Store{pool: pool, prom: prom}
}

func (s *Store) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Record upserts the poison annotation for a.MessageID: insert on first
// sight, update in place on a later poison (a message can in principle
// be re-delivered and re-poisoned after an operator clears it).
func (s *Store) Record(ctx context.Context, a Annotation) error {
	return s.observe("deadletter.record", func() error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO poisoned_messages
				(message_id, short_description, full_description, exceptions, poisoned_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (message_id) DO UPDATE SET
				short_description = EXCLUDED.short_description,
				full_description  = EXCLUDED.full_description,
				exceptions        = EXCLUDED.exceptions,
				poisoned_at       = NOW()
		`, a.MessageID, a.ShortDescription, a.FullDescription, a.Exceptions)
		return err
	})
}

// Get returns the stored annotation for id, and its poisoned_at time,
// or (Annotation{}, time.Time{}, false) if nothing has been recorded.
func (s *Store) Get(ctx context.Context, id string) (Annotation, time.Time, bool, error) {
	var (
		a          Annotation
		poisonedAt time.Time
	)
	a.MessageID = id

	err := s.observe("deadletter.get", func() error {
		return s.pool.QueryRow(ctx, `
			SELECT short_description, full_description, exceptions, poisoned_at
			FROM poisoned_messages
			WHERE message_id = $1
		`, id).Scan(&a.ShortDescription, &a.FullDescription, &a.Exceptions, &poisonedAt)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Annotation{}, time.Time{}, false, err
		}
		// pgx.ErrNoRows indicates "not found", every other error is
		// reported to the caller.
		if isNoRows(err) {
			return Annotation{}, time.Time{}, false, nil
		}
		return Annotation{}, time.Time{}, false, err
	}

	return a, poisonedAt, true, nil
}

// Ping checks connectivity for the admin API's readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
