// Package demotarget is a minimal, entirely in-memory implementation of
// target.Target. It is not a real debug backend, but the dispatcher's
// tests need something concrete to attach to, and the demo binary needs
// something to show the protocol working end to end without a real probe
// attached. Its register file and resume/step behavior are modeled on
// this codebase's original single-process emulator target, generalized to
// the target.Target contract instead of a hard-coded Cortex-M register
// set.
package demotarget

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/coredump-labs/rspd/pkg/bpstore"
	"github.com/coredump-labs/rspd/pkg/target"
)

// DemoTarget is a flat memory space plus a small fixed register file. Step
// and Resume do not execute real code: Step advances the program counter
// (register 0) by one and halts with ReasonSingleStep; Resume transitions
// to StateRunning and relies on the test/demo driver to call Stop to
// simulate a breakpoint hit.
type DemoTarget struct {
	mu sync.Mutex

	state  target.State
	reason target.DebugReason

	registers []*target.Register
	memory    []byte

	breakpoints *bpstore.Store

	cb target.EventCallback
}

const defaultRegisterCount = 16
const defaultRegisterWidth = 32
const defaultMemorySize = 64 * 1024

// New constructs a halted demo target with defaultRegisterCount
// general-purpose registers (register 0 doubles as the program counter)
// and a flat defaultMemorySize-byte memory space starting at address 0.
func New() *DemoTarget {
	regs := make([]*target.Register, defaultRegisterCount)
	for i := range regs {
		regs[i] = &target.Register{
			Width: defaultRegisterWidth,
			Value: make([]byte, defaultRegisterWidth/8),
		}
	}
	return &DemoTarget{
		state:       target.StateHalted,
		reason:      target.ReasonRequest,
		registers:   regs,
		memory:      make([]byte, defaultMemorySize),
		breakpoints: bpstore.New(map[target.BreakpointType]int{target.HardwareBreak: 4}),
	}
}

// SetState forces the reported state, for tests that need to simulate the
// target having started running outside of Resume/Step.
func (d *DemoTarget) SetState(s target.State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// SetDebugReason forces the next halted reason a test wants to observe.
func (d *DemoTarget) SetDebugReason(r target.DebugReason) {
	d.mu.Lock()
	d.reason = r
	d.mu.Unlock()
}

// SetMemory seeds memory starting at addr, growing the backing buffer if
// needed. Exists for tests to seed fixed memory contents before a read.
func (d *DemoTarget) SetMemory(addr uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	end := addr + uint64(len(data))
	if end > uint64(len(d.memory)) {
		grown := make([]byte, end)
		copy(grown, d.memory)
		d.memory = grown
	}
	copy(d.memory[addr:end], data)
}

// Stop simulates the in-flight execution hitting a breakpoint: it
// transitions to StateHalted with the given reason and fires the event
// callback, as a real backend's driver thread would.
func (d *DemoTarget) Stop(reason target.DebugReason) {
	d.mu.Lock()
	d.state = target.StateHalted
	d.reason = reason
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(target.Event{Kind: target.EventHalted})
	}
}

func (d *DemoTarget) State() target.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *DemoTarget) DebugReason() target.DebugReason {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

func (d *DemoTarget) Halt(ctx context.Context) error {
	d.mu.Lock()
	if d.state == target.StateHalted {
		d.mu.Unlock()
		return target.ErrAlreadyHalted
	}
	d.state = target.StateHalted
	d.reason = target.ReasonRequest
	cb := d.cb
	d.mu.Unlock()

	if cb != nil {
		cb(target.Event{Kind: target.EventHalted})
	}
	return nil
}

func (d *DemoTarget) Poll(ctx context.Context) error {
	return nil
}

func (d *DemoTarget) pc() uint64 {
	return binary.LittleEndian.Uint64(pad8(d.registers[0].Value))
}

func (d *DemoTarget) setPC(addr uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, addr)
	copy(d.registers[0].Value, buf[:len(d.registers[0].Value)])
}

func pad8(v []byte) []byte {
	if len(v) >= 8 {
		return v[:8]
	}
	out := make([]byte, 8)
	copy(out, v)
	return out
}

func (d *DemoTarget) Resume(ctx context.Context, current bool, addr uint64, handleBreakpoints, debug bool) error {
	d.mu.Lock()
	if !current {
		d.setPC(addr)
	}
	d.state = target.StateRunning
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(target.Event{Kind: target.EventResumed})
	}
	return nil
}

// Step executes synchronously but still fires both the Resumed and Halted
// transitions a real single-threaded backend would report, so the
// dispatcher's stop-reply path sees the same sequence it would from an
// asynchronous target.
func (d *DemoTarget) Step(ctx context.Context, current bool, addr uint64, handleBreakpoints bool) error {
	d.mu.Lock()
	if !current {
		d.setPC(addr)
	} else {
		d.setPC(d.pc() + 1)
	}
	d.state = target.StateRunning
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(target.Event{Kind: target.EventResumed})
	}

	d.mu.Lock()
	d.state = target.StateHalted
	d.reason = target.ReasonSingleStep
	d.mu.Unlock()
	if cb != nil {
		cb(target.Event{Kind: target.EventHalted})
	}
	return nil
}

func (d *DemoTarget) Registers() []*target.Register {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registers
}

func (d *DemoTarget) ReadMemory(ctx context.Context, addr uint64, elementSize, count int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != target.StateHalted {
		return nil, target.ErrNotHalted
	}
	n := elementSize * count
	out := make([]byte, n)
	if int(addr)+n > len(d.memory) {
		grown := make([]byte, int(addr)+n)
		copy(grown, d.memory)
		d.memory = grown
	}
	copy(out, d.memory[addr:int(addr)+n])
	return out, nil
}

func (d *DemoTarget) WriteMemory(ctx context.Context, addr uint64, elementSize int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != target.StateHalted {
		return target.ErrNotHalted
	}
	end := int(addr) + len(data)
	if end > len(d.memory) {
		grown := make([]byte, end)
		copy(grown, d.memory)
		d.memory = grown
	}
	copy(d.memory[addr:end], data)
	return nil
}

func (d *DemoTarget) WriteBuffer(ctx context.Context, addr uint64, data []byte) error {
	return d.WriteMemory(ctx, addr, 1, data)
}

func (d *DemoTarget) AddBreakpoint(ctx context.Context, typ target.BreakpointType, addr, size uint64) error {
	return d.breakpoints.Add(typ, addr, size)
}

func (d *DemoTarget) RemoveBreakpoint(ctx context.Context, typ target.BreakpointType, addr uint64) error {
	d.breakpoints.Remove(typ, addr)
	return nil
}

func (d *DemoTarget) RegisterEventCallback(cb target.EventCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *DemoTarget) UnregisterEventCallback() {
	d.mu.Lock()
	d.cb = nil
	d.mu.Unlock()
}

var _ target.Target = (*DemoTarget)(nil)
