package deadletter

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatalf("nil error must not be a unique violation")
	}
	if IsUniqueViolation(errors.New("some other error")) {
		t.Fatalf("plain error must not be a unique violation")
	}

	uniqueErr := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(uniqueErr) {
		t.Fatalf("expected SQLSTATE 23505 to be classified as a unique violation")
	}

	otherErr := &pgconn.PgError{Code: "23503"} // foreign_key_violation
	if IsUniqueViolation(otherErr) {
		t.Fatalf("SQLSTATE 23503 must not be classified as a unique violation")
	}

	wrapped := errors.Join(errors.New("wrapper"), uniqueErr)
	if !IsUniqueViolation(wrapped) {
		t.Fatalf("expected errors.As to unwrap a joined unique violation")
	}
}
