package srtp

import (
	"errors"
)

// Per-packet failures. Decrypt callers should treat all four as a silent drop.
var (
	ErrMalformed    = errors.New("srtp: malformed header")
	ErrShortBuffer  = errors.New("srtp: packet too short")
	ErrAuthMismatch = errors.New("srtp: authentication failed")
	ErrReplay       = errors.New("srtp: replayed packet")
)

var (
	ErrInvalidConfig      = errors.New("srtp: invalid configuration")
	ErrExceededMaxPackets = errors.New("srtp: exceeded the maximum number of packets")
	ErrSessionClosed      = errors.New("srtp: session closed")
	ErrNoConn             = errors.New("srtp: no conn provided")
	ErrNoConfig           = errors.New("srtp: no config provided")
	ErrStreamClosed       = errors.New("srtp: stream closed")
	ErrNotRTPOrRTCP       = errors.New("srtp: payload is neither rtp nor rtcp")
)

// IsDropped reports whether err is a per-packet failure that leaves the context untouched.
func IsDropped(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrShortBuffer) ||
		errors.Is(err, ErrAuthMismatch) ||
		errors.Is(err, ErrReplay)
}
