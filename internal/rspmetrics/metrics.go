// Package rspmetrics defines the metrics seam the dispatcher reports
// through. The interface lives here, independent of any exporter; a
// Prometheus-backed implementation lives in the sibling promcollector
// package so that importing rspmetrics never pulls in the client library
// (the same "interface in the domain package, concrete exporter behind it"
// split this codebase's storage layer uses).
package rspmetrics

// Collector receives counters and gauges describing dispatcher activity.
// A nil Collector is valid everywhere it is accepted: callers should use
// the package-level Noop value, which makes every method a no-op, so
// metrics collection costs nothing when disabled.
type Collector interface {
	// SessionOpened is called once per accepted connection.
	SessionOpened(sessionID string)
	// SessionClosed is called once when a session tears down.
	SessionClosed(sessionID string)
	// PacketReceived is called once per successfully framed inbound packet,
	// tagged with its first-byte command letter.
	PacketReceived(command byte)
	// PacketSent is called once per outbound packet, including stop-replies.
	PacketSent(kind string)
	// ChecksumMismatch is called once per retransmission request.
	ChecksumMismatch()
	// StopReplyEmitted is called once per asynchronous Txx stop-reply.
	StopReplyEmitted()
}

type noop struct{}

func (noop) SessionOpened(string)   {}
func (noop) SessionClosed(string)   {}
func (noop) PacketReceived(byte)    {}
func (noop) PacketSent(string)      {}
func (noop) ChecksumMismatch()      {}
func (noop) StopReplyEmitted()      {}

// Noop is a Collector whose every method does nothing.
var Noop Collector = noop{}
