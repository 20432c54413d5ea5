package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"
)

// protocolMarker is implemented by all protocol-layer error types so we can classify them.
type protocolMarker interface {
	error
	isProtocol()
}

// FrameKind tags the reason a wire block failed validation.
type FrameKind int

const (
	// TooShort: fewer than the 3 mandatory bytes (length, command, checksum).
	TooShort FrameKind = iota
	// LengthMismatch: declared payload length disagrees with the actual frame size.
	LengthMismatch
	// BadChecksum: the running XOR over the frame does not satisfy the identity.
	BadChecksum
)

func (k FrameKind) String() string {
	switch k {
	case TooShort:
		return "too_short"
	case LengthMismatch:
		return "length_mismatch"
	case BadChecksum:
		return "bad_checksum"
	}
	return fmt.Sprintf("frame_kind(%d)", int(k))
}

// FrameError indicates an invalid wire block. The connection handler answers
// these with a REJECT frame and keeps the session open.
type FrameError struct {
	Kind FrameKind
	Op   string // high-level operation (e.g. "frame.decode")
	Err  error  // underlying cause (may be nil)
}

func (e *FrameError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("frame error: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("frame error: %s: %s: %v", e.Op, e.Kind, e.Err)
}
func (e *FrameError) Unwrap() error { return e.Err }
func (e *FrameError) isProtocol()   {}

// EncryptedHandshakeError indicates the peer opened the proprietary encrypted
// variant of the protocol. The session is closed without any reply so the
// panel does not keep retrying on the same socket.
type EncryptedHandshakeError struct {
	Op string
}

func (e *EncryptedHandshakeError) Error() string {
	return fmt.Sprintf("encrypted handshake not supported: %s", e.Op)
}
func (e *EncryptedHandshakeError) isProtocol() {}

// ParseError indicates a semantic payload (NEW_EVENT sections, event code)
// could not be interpreted. Parsing is lenient, so these surface as warnings
// rather than aborting the event.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse error: %s", e.Op)
	}
	return fmt.Sprintf("parse error: %s: %v", e.Op, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) isProtocol()   {}

// DispatchError indicates a notification delivery attempt failed. StatusCode
// is zero for transport-level failures (timeout, refused connection).
type DispatchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	base := fmt.Sprintf("dispatch error: %s", e.Op)
	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}
func (e *DispatchError) Unwrap() error { return e.Err }

// TimeoutError indicates an operation exceeded a deadline or idle timeout.
type TimeoutError struct {
	Op       string
	Duration time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (after %s)", e.Op, e.Duration)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout returns true if err is (or wraps) a TimeoutError, a context deadline exceeded,
// or any error type that exposes Timeout() bool and returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stdErrors.As(err, &te) {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// IsProtocolError returns true if the error chain contains any protocol-layer
// error (FrameError, EncryptedHandshakeError, ParseError).
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	var pm protocolMarker
	return stdErrors.As(err, &pm)
}

// IsFrameError reports whether err wraps a FrameError of the given kind.
func IsFrameError(err error, kind FrameKind) bool {
	var fe *FrameError
	if stdErrors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsEncryptedHandshake reports whether err wraps an EncryptedHandshakeError.
func IsEncryptedHandshake(err error) bool {
	var ee *EncryptedHandshakeError
	return stdErrors.As(err, &ee)
}

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewFrameError(kind FrameKind, op string, cause error) error {
	return &FrameError{Kind: kind, Op: op, Err: cause}
}
func NewEncryptedHandshakeError(op string) error { return &EncryptedHandshakeError{Op: op} }
func NewParseError(op string, cause error) error { return &ParseError{Op: op, Err: cause} }
func NewDispatchError(op string, status int, cause error) error {
	return &DispatchError{Op: op, StatusCode: status, Err: cause}
}
func NewTimeoutError(op string, d time.Duration, cause error) error {
	return &TimeoutError{Op: op, Duration: d, Err: cause}
}
