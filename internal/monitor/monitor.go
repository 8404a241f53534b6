// Package monitor defines the command-interpreter collaborator the
// dispatcher forwards qRcmd text to. The protocol core treats
// the interpreter purely as an opaque sink: it does not know or care what
// "monitor reset halt" or any other line means, only that running it may
// produce textual output that belongs on the wire as O-packets.
package monitor

import "context"

// Interpreter runs one line of monitor-command text and returns whatever
// textual output it produced. It is a single-method seam so the dispatcher
// depends on an interface, not a concrete command shell.
type Interpreter interface {
	Run(ctx context.Context, line string) string
}

// Func adapts a plain function to Interpreter.
type Func func(ctx context.Context, line string) string

func (f Func) Run(ctx context.Context, line string) string { return f(ctx, line) }

// Discard is an Interpreter that runs nothing and always reports no output.
// It is the zero-value collaborator for targets/tests that never issue
// qRcmd.
var Discard Interpreter = Func(func(context.Context, string) string { return "" })
