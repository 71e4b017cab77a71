package tracker

import "context"

// Logger is the warning sink the tracker is constructed with. It is a
// contract on an injected collaborator: the tracker never constructs its
// own logger and never lets the logger's own failure escape the hot path.
type Logger interface {
	Warn(ctx context.Context, err error, template string, args ...any)
}
