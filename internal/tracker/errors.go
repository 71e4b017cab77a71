package tracker

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned (wrapped with context) whenever a caller
// passes a null exception, an empty message id, or the tracker is
// constructed with a non-positive max delivery attempts or a missing
// collaborator. It is the only caller-visible failure mode the tracker
// produces; everything else (logging failures, cleanup sweep failures) is
// swallowed internally.
var ErrInvalidArgument = errors.New("errortracker: invalid argument")

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}
