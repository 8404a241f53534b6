package target

import "errors"

// ErrAlreadyHalted is returned by Halt when the target was already halted.
// The core treats this as success, not failure.
var ErrAlreadyHalted = errors.New("target: already halted")

// ErrNotHalted is returned by register/memory operations that require the
// target to be halted first. The core treats this as fatal to the session:
// there is no protocol-clean way to recover short of desync.
var ErrNotHalted = errors.New("target: not halted")

// ErrResourceNotAvailable is returned by AddBreakpoint when no hardware
// slot remains for the requested breakpoint/watchpoint type. The dispatcher
// maps this to an E00 reply rather than tearing down the session.
var ErrResourceNotAvailable = errors.New("target: resource not available")
