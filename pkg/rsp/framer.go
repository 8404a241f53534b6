package rsp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

const defaultReadBufferSize = 4096

// Framer implements the RSP byte-level state machine: it owns a peek
// buffer over an underlying byte stream, extracts and validates inbound
// packets, acknowledges them, and frames + sends outbound packets while
// waiting synchronously for the peer's acknowledgment.
//
// A Framer is not safe for concurrent use; the session above it is
// responsible for serializing access.
type Framer struct {
	rw  io.ReadWriter
	buf []byte
	pos int
	cnt int

	// OnInterrupt is invoked whenever a bare 0x03 byte is observed, in any
	// of the three legal positions: between packets, inside a packet
	// body, or while waiting for an outbound acknowledgment. It is how the
	// codec reports ctrl_c_pending up to the owning session without
	// depending on its type.
	OnInterrupt func()

	// OnChecksumMismatch, if set, is invoked once per rejected checksum
	// before the '-' retransmit request is written. Purely observational
	// (e.g. for metrics); it cannot veto the retransmit.
	OnChecksumMismatch func()

	Logger Logger
}

// NewFramer wraps rw with a peek buffer of the given size (0 selects a
// reasonable default).
func NewFramer(rw io.ReadWriter, bufSize int) *Framer {
	if bufSize <= 0 {
		bufSize = defaultReadBufferSize
	}
	return &Framer{
		rw:     rw,
		buf:    make([]byte, bufSize),
		Logger: NopLogger,
	}
}

func (f *Framer) logger() Logger {
	if f.Logger == nil {
		return NopLogger
	}
	return f.Logger
}

func (f *Framer) onInterrupt() {
	if f.OnInterrupt != nil {
		f.OnInterrupt()
	}
}

// readByte draws from the peek buffer first and refills from the stream
// when exhausted. A transient "no data right now" (a read deadline expiry)
// is treated as a wait and retried, never as a failure; remote closure is
// surfaced as RemoteClosed.
func (f *Framer) readByte(ctx context.Context) (byte, error) {
	for {
		if f.pos < f.cnt {
			b := f.buf[f.pos]
			f.pos++
			return b, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := f.rw.Read(f.buf)
		if err != nil {
			if isRemoteClosed(err) {
				return 0, RemoteClosed
			}
			if isTransient(err) {
				continue
			}
			return 0, err
		}
		if n == 0 {
			continue
		}
		f.pos, f.cnt = 0, n
	}
}

func isRemoteClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

func wrapWriteErr(err error) error {
	if isRemoteClosed(err) {
		return RemoteClosed
	}
	return err
}

// ReadPacket runs the Sync/Body/Checksum state machine and returns
// one packet's payload. A leading interrupt byte yields an empty, non-nil
// payload slice with a nil error: the dispatcher is expected to act on the
// pending interrupt rather than treat this as a real packet.
//
// maxLen bounds the payload the caller is willing to buffer; exceeding it
// returns BufferTooSmall, a fatal framing error.
func (f *Framer) ReadPacket(ctx context.Context, maxLen int) ([]byte, error) {
	for {
		if err := f.sync(ctx); err != nil {
			if err == errInterrupted {
				return []byte{}, nil
			}
			return nil, err
		}

		payload, sum, err := f.readBody(ctx, maxLen)
		if err != nil {
			return nil, err
		}

		hi, err := f.readByte(ctx)
		if err != nil {
			return nil, err
		}
		lo, err := f.readByte(ctx)
		if err != nil {
			return nil, err
		}
		want, ok := parseHexByte(hi, lo)
		if !ok || want != sum {
			f.logger().Warnf("rsp: checksum mismatch, requesting retransmission")
			if f.OnChecksumMismatch != nil {
				f.OnChecksumMismatch()
			}
			if _, err := f.rw.Write([]byte{'-'}); err != nil {
				return nil, wrapWriteErr(err)
			}
			continue
		}
		if _, err := f.rw.Write([]byte{'+'}); err != nil {
			return nil, wrapWriteErr(err)
		}
		return payload, nil
	}
}

var errInterrupted = errors.New("rsp: interrupted during sync")

// sync discards bytes until '$' (a packet begins) or 0x03 (an out-of-band
// interrupt) is seen, logging stray acknowledgment bytes along the way.
func (f *Framer) sync(ctx context.Context) error {
	for {
		c, err := f.readByte(ctx)
		if err != nil {
			return err
		}
		switch c {
		case '$':
			return nil
		case 0x03:
			f.onInterrupt()
			return errInterrupted
		case '+', '-':
			f.logger().Debugf("rsp: ignoring stray acknowledgment %q outside a packet", c)
		default:
			f.logger().Debugf("rsp: ignoring stray byte 0x%02x before packet", c)
		}
	}
}

// readBody consumes the packet body up to (not including) '#', honoring
// the binary escape sub-mode when the first payload byte is 'X'. It
// returns the decoded payload and the running checksum computed over the
// raw wire bytes.
func (f *Framer) readBody(ctx context.Context, maxLen int) ([]byte, byte, error) {
	var payload []byte
	var sum byte
	binary := false
	first := true

	for {
		c, err := f.readByte(ctx)
		if err != nil {
			return nil, 0, err
		}
		if first {
			binary = c == 'X'
			first = false
		}
		if c == '#' {
			return payload, sum, nil
		}

		if binary && c == 0x7d {
			sum += c
			c2, err := f.readByte(ctx)
			if err != nil {
				return nil, 0, err
			}
			sum += c2
			payload = append(payload, c2^0x20)
		} else if !binary && c == 0x03 {
			f.onInterrupt()
		} else {
			payload = append(payload, c)
			sum += c
		}

		if len(payload) > maxLen {
			return nil, 0, BufferTooSmall
		}
	}
}

// WritePacket frames payload and writes it, then waits synchronously for
// the peer's acknowledgment, retransmitting on '-' and recording an
// interrupt (without retransmitting) on 0x03.
func (f *Framer) WritePacket(ctx context.Context, payload []byte) error {
	sum := checksum(payload)
	hi, lo := hexByte(sum)

	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, '$')
	frame = append(frame, payload...)
	frame = append(frame, '#', hi, lo)

	if _, err := f.rw.Write(frame); err != nil {
		return wrapWriteErr(err)
	}

	for {
		c, err := f.readByte(ctx)
		if err != nil {
			return err
		}
		switch c {
		case '+':
			return nil
		case '-':
			f.logger().Warnf("rsp: negative acknowledgment, retransmitting")
			if _, err := f.rw.Write(frame); err != nil {
				return wrapWriteErr(err)
			}
		case 0x03:
			f.onInterrupt()
		default:
			return ErrProtocolViolation
		}
	}
}

// ReadAck consumes a single raw byte from the stream without framing. It is
// used to discard the debugger's opening '+' during attach.
func (f *Framer) ReadAck(ctx context.Context) error {
	_, err := f.readByte(ctx)
	return err
}
