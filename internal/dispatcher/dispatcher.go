// Package dispatcher implements the command dispatcher and protocol state
// machine: it parses inbound packet payloads, invokes target
// operations, formats replies, and turns asynchronous target events into
// stop-reply packets.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/coredump-labs/rspd/internal/monitor"
	"github.com/coredump-labs/rspd/internal/session"
	"github.com/coredump-labs/rspd/pkg/rsp"
	"github.com/coredump-labs/rspd/pkg/target"
)

const defaultMaxPacketLen = 16 * 1024

// errKill signals that a 'k' packet was handled: the OK reply has already
// been written and the caller should tear the connection down and report it
// as an ordinary remote closure, not a fatal error.
var errKill = errors.New("dispatcher: kill packet handled")

// Dispatcher owns the receive loop for one attached session.
type Dispatcher struct {
	session   *session.Session
	interp    monitor.Interpreter
	logger    rsp.Logger
	maxPacket int
}

// New constructs a Dispatcher. interp may be nil, in which case qRcmd always
// reports no output (monitor.Discard); logger may be nil (discarded).
func New(sess *session.Session, interp monitor.Interpreter, logger rsp.Logger) *Dispatcher {
	if interp == nil {
		interp = monitor.Discard
	}
	if logger == nil {
		logger = rsp.NopLogger
	}
	return &Dispatcher{
		session:   sess,
		interp:    interp,
		logger:    logger,
		maxPacket: defaultMaxPacketLen,
	}
}

// Run attaches the session to its target and services packets until the
// stream closes, the peer kills the session, or a fatal error occurs. A
// clean remote closure returns nil; a 'k' kill returns rsp.RemoteClosed
// after the OK reply; anything else returns a *SessionFatalError.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.session.Attach(ctx, d.onTargetEvent); err != nil {
		return fatalf("attach", err)
	}
	defer d.session.Detach()

	for {
		if err := d.session.Fatal(); err != nil {
			return err
		}

		payload, err := d.session.ReadPacket(ctx, d.maxPacket)
		if err != nil {
			if errors.Is(err, rsp.RemoteClosed) {
				return nil
			}
			return fatalf("read packet", err)
		}

		if len(payload) > 0 {
			d.session.Metrics().PacketReceived(payload[0])
			if err := d.dispatch(ctx, payload); err != nil {
				if errors.Is(err, errKill) {
					return rsp.RemoteClosed
				}
				var sfe *SessionFatalError
				if errors.As(err, &sfe) {
					return err
				}
				return fatalf("dispatch", err)
			}
		}

		if d.session.CtrlCPending() && d.session.Target().State() == target.StateRunning {
			if err := d.session.Target().Halt(ctx); err != nil && !errors.Is(err, target.ErrAlreadyHalted) {
				return fatalf("halt on interrupt", err)
			}
			d.session.ClearCtrlCPending()
		}
	}
}

// onTargetEvent turns target state transitions into stop-reply packets. It
// is registered with the target at Attach time and may be invoked from a
// different goroutine than Run's.
func (d *Dispatcher) onTargetEvent(ev target.Event) {
	switch ev.Kind {
	case target.EventHalted:
		if d.session.FrontendState() != session.FrontendRunning {
			return
		}
		var signal byte
		if d.session.CtrlCPending() {
			signal = 0x02
			d.session.ClearCtrlCPending()
		} else {
			s, err := target.Signal(d.session.Target().DebugReason())
			if err != nil {
				d.session.SetFatal(fatalf("stop-reply signal mapping", err))
				d.logger.Warnf("dispatcher: %v", err)
				return
			}
			signal = s
		}
		d.session.SetFrontendState(session.FrontendHalted)
		if err := d.session.WritePacket(context.Background(), []byte(fmt.Sprintf("T%02x", signal))); err != nil {
			d.logger.Warnf("dispatcher: writing stop-reply: %v", err)
			return
		}
		d.session.Metrics().PacketSent("stop_reply")
		d.session.Metrics().StopReplyEmitted()

	case target.EventResumed:
		if d.session.FrontendState() == session.FrontendHalted {
			d.session.SetFrontendState(session.FrontendRunning)
		}
	}
}
