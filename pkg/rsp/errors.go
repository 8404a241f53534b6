package rsp

import "errors"

// RemoteClosed is returned by readByte/ReadPacket/WritePacket when the
// underlying stream reported EOF, ECONNABORTED, or ECONNRESET. It is not a
// framing bug — the session tears down cleanly on this error.
var RemoteClosed = errors.New("rsp: remote closed the connection")

// BufferTooSmall is returned by ReadPacket when a packet's payload exceeds
// the caller-supplied buffer capacity. It is fatal to the session.
var BufferTooSmall = errors.New("rsp: packet payload exceeds buffer capacity")

// ErrProtocolViolation is returned by WritePacket when the peer sends
// anything other than '+', '-', or 0x03 in reply to an outbound packet.
// Fatal to the session.
var ErrProtocolViolation = errors.New("rsp: unexpected byte in acknowledgment stream")
