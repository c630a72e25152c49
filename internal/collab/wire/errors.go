package wire

import "errors"

var (
	// ErrEndOfStream indicates the peer closed the stream before a complete
	// token arrived.
	ErrEndOfStream = errors.New("end of stream")

	// ErrProtocol indicates a message that does not follow the grammar.
	ErrProtocol = errors.New("protocol error")
)
