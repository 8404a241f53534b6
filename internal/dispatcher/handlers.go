package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coredump-labs/rspd/pkg/rsp"
	"github.com/coredump-labs/rspd/pkg/target"
)

// dispatch parses payload's first byte and runs the matching handler.
func (d *Dispatcher) dispatch(ctx context.Context, payload []byte) error {
	cmd := payload[0]
	body := string(payload[1:])

	switch cmd {
	case 'H':
		return d.handleSetThread(ctx)
	case '?':
		return d.handleLastSignal(ctx)
	case 'q':
		return d.handleQuery(ctx, body)
	case 'g':
		return d.handleReadRegisters(ctx)
	case 'G':
		return d.handleWriteRegisters(ctx, body)
	case 'p':
		return d.handleReadRegister(ctx, body)
	case 'P':
		return d.handleWriteRegister(ctx, body)
	case 'm':
		return d.handleReadMemory(ctx, body)
	case 'M':
		return d.handleWriteMemory(ctx, body)
	case 'X':
		return d.handleWriteMemoryBinary(ctx, body)
	case 'c':
		return d.handleResume(ctx, body)
	case 's':
		return d.handleStep(ctx, body)
	case 'z':
		return d.handleRemoveBreakpoint(ctx, body)
	case 'Z':
		return d.handleAddBreakpoint(ctx, body)
	case 'D':
		return d.handleDetach(ctx)
	case 'k':
		return d.handleKill(ctx)
	default:
		return d.replyEmpty(ctx)
	}
}

func (d *Dispatcher) reply(ctx context.Context, s string) error {
	if err := d.session.WritePacket(ctx, []byte(s)); err != nil {
		return err
	}
	d.session.Metrics().PacketSent("reply")
	return nil
}

func (d *Dispatcher) replyEmpty(ctx context.Context) error {
	return d.reply(ctx, "")
}

func (d *Dispatcher) replyOK(ctx context.Context) error {
	return d.reply(ctx, "OK")
}

// --- H, ? ---------------------------------------------------------------

func (d *Dispatcher) handleSetThread(ctx context.Context) error {
	return d.replyEmpty(ctx)
}

func (d *Dispatcher) handleLastSignal(ctx context.Context) error {
	signal, err := target.Signal(d.session.Target().DebugReason())
	if err != nil {
		return fatalf("last signal", err)
	}
	return d.reply(ctx, fmt.Sprintf("S%02x", signal))
}

// --- q --------------------------------------------------------------------

const qRcmdPrefix = "Rcmd,"

func (d *Dispatcher) handleQuery(ctx context.Context, body string) error {
	if !strings.HasPrefix(body, qRcmdPrefix) {
		return d.replyEmpty(ctx)
	}
	hexCmd := body[len(qRcmdPrefix):]
	raw, ok := rsp.DecodeHex(hexCmd)
	if !ok {
		return d.replyEmpty(ctx)
	}
	out := d.interp.Run(ctx, string(raw))
	if out != "" {
		if err := d.reply(ctx, "O"+rsp.EncodeHex([]byte(out+"\n"))); err != nil {
			return err
		}
	}
	return d.replyOK(ctx)
}

// --- g, G, p, P -------------------------------------------------------------

func (d *Dispatcher) handleReadRegisters(ctx context.Context) error {
	regs := d.session.Target().Registers()
	out := ""
	for _, r := range regs {
		out += rsp.EncodeHexReversed(r.Value, r.Width)
	}
	return d.reply(ctx, out)
}

func (d *Dispatcher) handleWriteRegisters(ctx context.Context, body string) error {
	regs := d.session.Target().Registers()
	offset := 0
	for _, r := range regs {
		n := r.ByteWidth() * 2
		if offset+n > len(body) {
			d.logger.Warnf("dispatcher: G packet shorter than register list, ignoring")
			return nil
		}
		chunk := body[offset : offset+n]
		val, ok := rsp.DecodeHexReversed(chunk, r.Width)
		if !ok {
			d.logger.Warnf("dispatcher: G packet contains invalid hex, ignoring")
			return nil
		}
		r.Value = val
		r.Dirty = true
		offset += n
	}
	if offset != len(body) {
		d.logger.Warnf("dispatcher: G packet longer than register list, ignoring")
		return nil
	}
	return d.replyOK(ctx)
}

func (d *Dispatcher) handleReadRegister(ctx context.Context, body string) error {
	n, ok := parseHex(body)
	if !ok {
		return d.replyEmpty(ctx)
	}
	regs := d.session.Target().Registers()
	if n >= uint64(len(regs)) {
		return fatalf("read register", fmt.Errorf("register index %d out of range (have %d)", n, len(regs)))
	}
	r := regs[n]
	return d.reply(ctx, rsp.EncodeHexReversed(r.Value, r.Width))
}

func (d *Dispatcher) handleWriteRegister(ctx context.Context, body string) error {
	numStr, valStr, ok := cutEquals(body)
	if !ok {
		return fatalf("write register", errMissingEquals)
	}
	n, ok := parseHex(numStr)
	if !ok {
		return d.replyEmpty(ctx)
	}
	regs := d.session.Target().Registers()
	if n >= uint64(len(regs)) {
		return fatalf("write register", fmt.Errorf("register index %d out of range (have %d)", n, len(regs)))
	}
	r := regs[n]
	val, ok := rsp.DecodeHexReversed(valStr, r.Width)
	if !ok {
		d.logger.Warnf("dispatcher: P packet contains invalid hex, ignoring")
		return nil
	}
	r.Value = val
	r.Dirty = true
	return d.replyOK(ctx)
}

// --- m, M, X ----------------------------------------------------------------

func (d *Dispatcher) handleReadMemory(ctx context.Context, body string) error {
	addrStr, lenStr, ok := cutComma(body)
	if !ok {
		return nil
	}
	addr, ok := parseHex(addrStr)
	if !ok {
		return nil
	}
	length, ok := parseHex(lenStr)
	if !ok {
		return nil
	}

	elementSize := selectElementSize(addr, int(length))
	count := int(length) / elementSize
	data, err := d.session.Target().ReadMemory(ctx, addr, elementSize, count)
	if err != nil {
		return fatalf("read memory", err)
	}
	return d.reply(ctx, rsp.EncodeHex(data))
}

func (d *Dispatcher) handleWriteMemory(ctx context.Context, body string) error {
	addrLen, hexData, ok := cutColon(body)
	if !ok {
		return nil
	}
	addrStr, lenStr, ok := cutComma(addrLen)
	if !ok {
		return nil
	}
	addr, ok := parseHex(addrStr)
	if !ok {
		return nil
	}
	length, ok := parseHex(lenStr)
	if !ok {
		return nil
	}
	data, ok := rsp.DecodeHex(hexData)
	if !ok {
		return nil
	}

	if len(data) > 4 {
		if err := d.session.Target().WriteBuffer(ctx, addr, data); err != nil {
			return fatalf("write memory", err)
		}
		return d.replyOK(ctx)
	}

	elementSize := selectElementSize(addr, int(length))
	if err := d.session.Target().WriteMemory(ctx, addr, elementSize, data); err != nil {
		return fatalf("write memory", err)
	}
	return d.replyOK(ctx)
}

func (d *Dispatcher) handleWriteMemoryBinary(ctx context.Context, body string) error {
	addrLen, binaryData, ok := cutColon(body)
	if !ok {
		return nil
	}
	addrStr, lenStr, ok := cutComma(addrLen)
	if !ok {
		return nil
	}
	addr, ok := parseHex(addrStr)
	if !ok {
		return nil
	}
	length, ok := parseHex(lenStr)
	if !ok {
		return nil
	}
	if length == 0 {
		return d.replyOK(ctx)
	}
	if err := d.session.Target().WriteBuffer(ctx, addr, []byte(binaryData)); err != nil {
		return fatalf("write memory (binary)", err)
	}
	return d.replyOK(ctx)
}

// --- c, s -------------------------------------------------------------------

func parseOptionalAddress(body string) (addr uint64, current bool, ok bool) {
	if body == "" {
		return 0, true, true
	}
	v, parsed := parseHex(body)
	if !parsed {
		return 0, false, false
	}
	return v, false, true
}

func (d *Dispatcher) handleResume(ctx context.Context, body string) error {
	addr, current, ok := parseOptionalAddress(body)
	if !ok {
		return nil
	}
	if err := d.session.Target().Resume(ctx, current, addr, false, false); err != nil {
		return fatalf("resume", err)
	}
	return nil
}

func (d *Dispatcher) handleStep(ctx context.Context, body string) error {
	addr, current, ok := parseOptionalAddress(body)
	if !ok {
		return nil
	}
	if err := d.session.Target().Step(ctx, current, addr, false); err != nil {
		return fatalf("step", err)
	}
	return nil
}

// --- z, Z -------------------------------------------------------------------

func (d *Dispatcher) parseBreakpoint(body string) (typ target.BreakpointType, addr, size uint64, ok bool) {
	typeStr, rest, ok1 := cutComma(body)
	if !ok1 {
		return 0, 0, 0, false
	}
	addrStr, sizeStr, ok2 := cutComma(rest)
	if !ok2 {
		return 0, 0, 0, false
	}
	t, ok3 := parseHex(typeStr)
	if !ok3 || t > uint64(target.AccessWatch) {
		return 0, 0, 0, false
	}
	a, ok4 := parseHex(addrStr)
	if !ok4 {
		return 0, 0, 0, false
	}
	s, ok5 := parseHex(sizeStr)
	if !ok5 {
		return 0, 0, 0, false
	}
	return target.BreakpointType(t), a, s, true
}

func (d *Dispatcher) handleAddBreakpoint(ctx context.Context, body string) error {
	typ, addr, size, ok := d.parseBreakpoint(body)
	if !ok {
		return nil
	}
	if err := d.session.Target().AddBreakpoint(ctx, typ, addr, size); err != nil {
		if errors.Is(err, target.ErrResourceNotAvailable) {
			return d.reply(ctx, "E00")
		}
		return fatalf("add breakpoint", err)
	}
	return d.replyOK(ctx)
}

func (d *Dispatcher) handleRemoveBreakpoint(ctx context.Context, body string) error {
	typ, addr, _, ok := d.parseBreakpoint(body)
	if !ok {
		return nil
	}
	_ = d.session.Target().RemoveBreakpoint(ctx, typ, addr)
	return d.replyOK(ctx)
}

// --- D, k -------------------------------------------------------------------

func (d *Dispatcher) handleDetach(ctx context.Context) error {
	if err := d.session.Target().Resume(ctx, true, 0, false, true); err != nil {
		return fatalf("detach", err)
	}
	return d.replyOK(ctx)
}

func (d *Dispatcher) handleKill(ctx context.Context) error {
	if err := d.replyOK(ctx); err != nil {
		return err
	}
	return errKill
}
