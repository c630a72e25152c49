package session

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled indicates the user dismissed a prompt.
	ErrCancelled = errors.New("cancelled")

	// ErrEmptyReply indicates the relay answered a create with an empty token.
	ErrEmptyReply = errors.New("empty reply")

	// ErrRejected indicates the relay refused a non-interactive rejoin.
	ErrRejected = errors.New("rejected")
)

// Error describes a failed handshake step.
type Error struct {
	Op  string // "create", "join", "rejoin" or "snapshot"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
