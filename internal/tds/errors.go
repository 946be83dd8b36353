package tds

import "fmt"

// ── Error Kinds (spec §7) ────────────────────────────────────────────────
//
// Transport and protocol errors are fatal: they move the connection to
// CLOSED and fail every pending exchange. Server-reported and codec
// errors attach to the exchange or value in which they arise and do not
// tear down the connection. Usage errors reject the call without
// affecting the connection.

// ProtocolError signals a malformed packet, an illegal state advance, or
// any other wire-level violation. Fatal: moves the connection to CLOSED.
type ProtocolError struct {
	Message string
	Got     PacketType
	Want    PacketType
}

func (e *ProtocolError) Error() string {
	if e.Want != 0 || e.Got != 0 {
		return fmt.Sprintf("%s: got %s, want %s", e.Message, e.Got, e.Want)
	}
	return e.Message
}

// ConnectionLostError wraps a transport-level failure (reset, I/O error,
// TLS failure). Fatal: moves the connection to CLOSED.
type ConnectionLostError struct {
	Cause error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Cause)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Cause
}

// ServerError is the terminal failure of an exchange whose response
// stream carried an ERROR token (class > 10). It does not close the
// connection; the engine continues draining until DONE(final).
type ServerError struct {
	Number int32
	State  uint8
	Class  uint8
	Msg    string
	Server string
	Proc   string
	Line   uint32
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("mssql: %s (%d) [state=%d class=%d, server=%q, proc=%q, line=%d]",
		e.Msg, e.Number, e.State, e.Class, e.Server, e.Proc, e.Line)
}

// IsError reports whether a class/severity value should be surfaced as
// an error rather than an informational message (spec §4.4: class <= 10
// is informational).
func IsError(class uint8) bool {
	return class > 10
}

// CodecError signals a decode/encode domain violation: out-of-range
// values, invalid scale, or an unsupported target-kind conversion. It
// attaches to the value being decoded; the exchange continues.
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return e.Message
}

// TypeMismatchError is returned when no codec in the registry declares
// it can decode a given (TypeInformation, target kind) pair.
type TypeMismatchError struct {
	ServerType byte
	Target     string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("tds: no codec for server type 0x%02X -> %s", e.ServerType, e.Target)
}

// IllegalStateError signals a usage error: a request submitted on a
// closed connection, or while another exchange is already in flight. It
// does not affect the connection.
type IllegalStateError struct {
	Message string
}

func (e *IllegalStateError) Error() string {
	return e.Message
}

// ErrConnectionClosed is returned by Exchange when the connection is
// already CLOSED at subscription time.
var ErrConnectionClosed = &IllegalStateError{Message: "tds: connection is closed"}

// ErrExchangeInProgress is returned by Exchange when another exchange is
// already in flight on this connection.
var ErrExchangeInProgress = &IllegalStateError{Message: "tds: an exchange is already in progress"}
