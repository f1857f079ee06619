package engine

import (
	"errors"
	"fmt"
)

// ErrNoTransport is returned by Dispatch when no serial transport is
// attached. Nothing about the engine's state changes in that case.
var ErrNoTransport = errors.New("engine: no transport attached")

// ValidationError rejects an action before any transport I/O happens.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: invalid parameter %q: %s", e.Param, e.Reason)
}
