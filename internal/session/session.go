// Package session implements the per-connection state:
// the framer's peek buffer, the pending-interrupt flag, and the
// debugger's run/halt belief about the target, plus the attach/detach
// choreography that ties a freshly accepted connection to a target.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/xid"

	"github.com/coredump-labs/rspd/internal/rspmetrics"
	"github.com/coredump-labs/rspd/pkg/rsp"
	"github.com/coredump-labs/rspd/pkg/target"
)

// FrontendState mirrors target.State but names the debugger's *belief*
// about the target, which the dispatcher must keep synchronized with
// reality via stop-replies. It starts at Halted regardless of the
// target's actual state until the attach halt-and-wait completes.
type FrontendState int

const (
	FrontendHalted FrontendState = iota
	FrontendRunning
)

// Session is the state owned by one connection for its lifetime. It is not
// safe for concurrent packet dispatch, but WritePacket, CtrlCPending, and
// ClearCtrlCPending ARE safe to call from a second goroutine delivering an
// asynchronous target event — that is the one concurrency seam a session
// needs to support.
type Session struct {
	ID xid.ID

	framer  *rsp.Framer
	target  target.Target
	metrics rspmetrics.Collector

	outMu sync.Mutex // serializes all outbound packets

	mu            sync.Mutex // guards the three fields below
	ctrlCPending  bool
	frontendState FrontendState
	fatal         error
}

// New constructs a Session around a raw byte stream. bufSize is the
// framer's peek-buffer capacity (0 selects a default); logger and metrics
// may be nil, in which case diagnostics are discarded and metrics are a
// no-op.
func New(stream io.ReadWriter, tgt target.Target, bufSize int, logger rsp.Logger, metrics rspmetrics.Collector) *Session {
	if metrics == nil {
		metrics = rspmetrics.Noop
	}
	s := &Session{
		ID:            xid.New(),
		target:        tgt,
		metrics:       metrics,
		frontendState: FrontendHalted,
	}
	f := rsp.NewFramer(stream, bufSize)
	if logger != nil {
		f.Logger = logger
	}
	f.OnInterrupt = s.setCtrlCPending
	f.OnChecksumMismatch = metrics.ChecksumMismatch
	s.framer = f
	return s
}

func (s *Session) setCtrlCPending() {
	s.mu.Lock()
	s.ctrlCPending = true
	s.mu.Unlock()
}

// CtrlCPending reports and does not clear the pending-interrupt flag.
func (s *Session) CtrlCPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrlCPending
}

// ClearCtrlCPending clears the pending-interrupt flag.
func (s *Session) ClearCtrlCPending() {
	s.mu.Lock()
	s.ctrlCPending = false
	s.mu.Unlock()
}

// FrontendState returns the debugger's current belief about the target.
func (s *Session) FrontendState() FrontendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frontendState
}

// SetFrontendState updates the debugger's belief about the target.
func (s *Session) SetFrontendState(st FrontendState) {
	s.mu.Lock()
	s.frontendState = st
	s.mu.Unlock()
}

// SetFatal records an error observed outside the receive loop (e.g. from an
// asynchronously delivered target event) that should tear the session down.
// Only the first call sticks; later calls are ignored so the original cause
// is not overwritten.
func (s *Session) SetFatal(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
}

// Fatal returns the error recorded by SetFatal, or nil if none has been
// recorded. The receive loop checks this once per iteration so a fatal
// condition raised from the event callback unwinds the session even though
// the callback itself has no return path into Run.
func (s *Session) Fatal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Target returns the backend this session drives.
func (s *Session) Target() target.Target {
	return s.target
}

// ReadPacket reads one inbound packet via the framer.
func (s *Session) ReadPacket(ctx context.Context, maxLen int) ([]byte, error) {
	return s.framer.ReadPacket(ctx, maxLen)
}

// WritePacket writes one outbound packet, serialized against any
// concurrently-delivered stop-reply.
func (s *Session) WritePacket(ctx context.Context, payload []byte) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.framer.WritePacket(ctx, payload)
}

// Attach performs the halt-and-wait choreography: request a halt, poll
// until the target reports Halted, then consume the debugger's
// opening acknowledgment byte. It also registers the session's own event
// callback with the target so Attach and the dispatcher's stop-reply logic
// share one registration.
func (s *Session) Attach(ctx context.Context, onEvent target.EventCallback) error {
	s.target.RegisterEventCallback(onEvent)

	if err := s.target.Halt(ctx); err != nil && err != target.ErrAlreadyHalted {
		return fmt.Errorf("session: halt on attach: %w", err)
	}
	for s.target.State() != target.StateHalted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.target.Poll(ctx); err != nil {
			return fmt.Errorf("session: poll while waiting for halt: %w", err)
		}
	}

	if err := s.framer.ReadAck(ctx); err != nil {
		return fmt.Errorf("session: consume opening ack: %w", err)
	}
	s.metrics.SessionOpened(s.ID.String())
	return nil
}

// Detach unregisters the session's event callback. It does not close the
// underlying stream; that remains the transport collaborator's
// responsibility.
func (s *Session) Detach() {
	s.target.UnregisterEventCallback()
	s.metrics.SessionClosed(s.ID.String())
}

// Metrics returns the session's metrics collector (never nil).
func (s *Session) Metrics() rspmetrics.Collector {
	return s.metrics
}
