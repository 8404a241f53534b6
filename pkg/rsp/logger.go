package rsp

// Logger is the minimal diagnostic sink the codec needs. It intentionally
// has no dependency on any concrete logging library: the composition root
// (internal/rsplog) adapts logrus to this interface, keeping the codec
// itself a pure, dependency-free protocol implementation.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// SessionLogger is optionally implemented by a Logger that can tag its
// output with a per-connection identifier. The dispatcher's callers check
// for it with a type assertion; a Logger that doesn't implement it is used
// unscoped.
type SessionLogger interface {
	Logger
	WithSession(id string) Logger
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// NopLogger discards everything. It is the default when a Framer is built
// without an explicit Logger.
var NopLogger Logger = nopLogger{}
