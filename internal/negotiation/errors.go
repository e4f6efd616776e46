package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrMediaUnavailable  = errors.New("local media unavailable")
	ErrRelayClosed       = errors.New("relay connection closed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnknownPeer       = errors.New("unknown peer")
	ErrClosed            = errors.New("orchestrator stopped")

	// Reasons a link is closed without a failure.
	ErrPeerLeft      = errors.New("peer left")
	ErrLocalTeardown = errors.New("local teardown")
)

// LinkError is a negotiation failure on the link to one remote peer. It
// closes that link only.
type LinkError struct {
	Op   string
	Peer string
	Err  error
}

func (e *LinkError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func linkError(op, peer string, err error) *LinkError {
	return &LinkError{Op: op, Peer: peer, Err: err}
}
