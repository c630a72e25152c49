// Package transport owns the stream connection to the relay.
package transport

import (
	"context"
	"net"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab/wire"
)

// State is the connection state.
type State int

const (
	// StateDisconnected means there is no usable socket.
	StateDisconnected State = iota
	// StateConnected means the socket is open.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Dialer opens stream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext calls f.
func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Conn is the single logical connection of the process. The underlying
// socket is recreated on every Connect after a failure.
//
// Send is safe for concurrent use; whole messages are written under one
// lock so writers never interleave. Receive is meant for one reader at a
// time and is serialized as well.
type Conn struct {
	addr   string
	dialer Dialer
	logger *zap.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *wire.Reader

	sendMu sync.Mutex
	recvMu sync.Mutex
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(c *Conn) {
		c.dialer = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) {
		c.logger = l
	}
}

// New creates a disconnected Conn for addr ("host:port").
func New(addr string, opts ...Option) *Conn {
	c := &Conn{
		addr:   addr,
		dialer: &net.Dialer{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("addr", addr))
	return c
}

// Addr returns the remote address.
func (c *Conn) Addr() string {
	return c.addr
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return StateDisconnected
	}
	return StateConnected
}

// Connected reports whether the state is StateConnected.
func (c *Conn) Connected() bool {
	return c.State() == StateConnected
}

// Connect dials the relay once. It is a no-op when already connected.
// Retrying is left to the caller.
func (c *Conn) Connect(ctx context.Context) error {
	if c.Connected() {
		return nil
	}
	nc, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.logger.Debug("connect failed", zap.Error(err))
		return &Error{Op: "connect", Addr: c.addr, Err: err}
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		_ = nc.Close()
		return nil
	}
	c.conn = nc
	c.reader = wire.NewReader(nc)
	c.mu.Unlock()

	c.logger.Info("connected")
	return nil
}

// Send writes b in full, looping over partial writes. Any error leaves the
// connection Disconnected; callers must not assume a prefix was delivered.
func (c *Conn) Send(b []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	nc := c.conn
	c.mu.Unlock()
	if nc == nil {
		return &Error{Op: "send", Addr: c.addr, Err: ErrNotConnected}
	}

	for len(b) > 0 {
		n, err := nc.Write(b)
		if err == nil && n == 0 {
			err = ErrShortWrite
		}
		if err != nil {
			c.drop(nc, "send", err)
			return &Error{Op: "send", Addr: c.addr, Err: err}
		}
		b = b[n:]
	}
	return nil
}

// Receive blocks until a complete token arrives. End of stream and read
// errors leave the connection Disconnected.
func (c *Conn) Receive() (string, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	c.mu.Lock()
	nc, r := c.conn, c.reader
	c.mu.Unlock()
	if nc == nil {
		return "", &Error{Op: "receive", Addr: c.addr, Err: ErrNotConnected}
	}

	tok, err := r.ReadToken()
	if err != nil {
		c.drop(nc, "receive", err)
		return "", &Error{Op: "receive", Addr: c.addr, Err: err}
	}
	return tok, nil
}

// Disconnect shuts the write side down, closes the socket and marks the
// connection Disconnected. Blocked Receive calls return with an error.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	nc := c.conn
	c.conn, c.reader = nil, nil
	c.mu.Unlock()
	if nc == nil {
		return nil
	}

	var err error
	if tcp, ok := nc.(*net.TCPConn); ok {
		err = tcp.CloseWrite()
	}
	err = multierr.Append(err, nc.Close())
	c.logger.Info("disconnected")
	if err != nil {
		return &Error{Op: "disconnect", Addr: c.addr, Err: err}
	}
	return nil
}

// drop closes nc if it is still the active socket.
func (c *Conn) drop(nc net.Conn, op string, cause error) {
	c.mu.Lock()
	if c.conn != nc {
		c.mu.Unlock()
		return
	}
	c.conn, c.reader = nil, nil
	c.mu.Unlock()

	_ = nc.Close()
	c.logger.Warn("connection lost", zap.String("op", op), zap.Error(cause))
}
