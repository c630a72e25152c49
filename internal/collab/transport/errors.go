package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates an operation that needs a live connection.
	ErrNotConnected = errors.New("not connected")

	// ErrShortWrite indicates the socket accepted zero bytes without an error.
	ErrShortWrite = errors.New("short write")
)

// Error describes a failed transport operation. Every Error leaves the
// connection Disconnected.
type Error struct {
	Op   string // "connect", "send", "receive" or "disconnect"
	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
