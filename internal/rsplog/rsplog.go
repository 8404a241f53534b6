// Package rsplog is, apart from the cmd/rspd composition root, the only
// place in this codebase that imports logrus directly. It adapts a *logrus.Entry to the small interfaces the
// core and dispatcher depend on, so that pkg/rsp, internal/session, and
// internal/dispatcher stay "bring your own sink" collaborators.
package rsplog

import (
	"github.com/sirupsen/logrus"

	"github.com/coredump-labs/rspd/pkg/rsp"
)

// Logger adapts logrus to rsp.Logger and adds the Infof severity the
// rspd binary uses for startup and shutdown messages.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger around base (logrus.StandardLogger() when nil). Use
// WithSession to tag its lines with a session id.
func New(base *logrus.Logger) *Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithSession returns a Logger tagging every line with the given session
// identifier, the same correlation scheme used for metrics labels. It
// satisfies rsp.SessionLogger.
func (l *Logger) WithSession(sessionID string) rsp.Logger {
	return &Logger{entry: l.entry.WithField("session", sessionID)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }

var _ rsp.SessionLogger = (*Logger)(nil)

// Configure installs a text formatter and parses level into the given
// logrus.Logger, returning an error for an unrecognized level name.
func Configure(base *logrus.Logger, level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	base.SetLevel(parsed)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}
