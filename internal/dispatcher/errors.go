package dispatcher

import (
	"errors"
	"fmt"
)

// SessionFatalError wraps an error that unwinds exactly one session, never
// the process. The receive loop returns it from Run; the caller is
// expected to close the connection and move on.
type SessionFatalError struct {
	Op  string
	Err error
}

func (e *SessionFatalError) Error() string {
	return fmt.Sprintf("dispatcher: %s: %v", e.Op, e.Err)
}

func (e *SessionFatalError) Unwrap() error { return e.Err }

func fatalf(op string, err error) error {
	return &SessionFatalError{Op: op, Err: err}
}

// errMissingEquals marks a P packet missing '=': unlike other malformed
// payloads, which are silently dropped, this one is fatal.
var errMissingEquals = errors.New("dispatcher: P packet missing '='")
