// Package collab ties the collaboration pieces together: one Client owns the
// relay connection, the coordinator guarding the document, the session
// handshake and the background listener.
package collab

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/clock"
	"github.com/dshills/coled/internal/collab/coordinator"
	"github.com/dshills/coled/internal/collab/listener"
	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/collab/transport"
	"github.com/dshills/coled/internal/collab/wire"
	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/engine/edit"
)

// Default relay endpoint.
const (
	DefaultServerAddress = "127.0.0.1"
	DefaultServerPort    = 3018
)

var (
	// ErrNoSession indicates an operation that needs an active session.
	ErrNoSession = errors.New("no active session")

	// ErrHostCopy indicates a resync requested by the session host, whose
	// document is the one snapshots are taken from.
	ErrHostCopy = errors.New("host holds the reference copy")

	// ErrClosed indicates use of a closed client.
	ErrClosed = errors.New("client closed")
)

type options struct {
	addr     string
	dialer   transport.Dialer
	clock    clock.Clock
	interval time.Duration
	limits   session.Limits
	logger   *zap.Logger
	notify   func()
	status   func(string)
}

// Option configures a Client.
type Option func(*options)

// WithAddress sets the relay address ("host:port").
func WithAddress(addr string) Option {
	return func(o *options) {
		o.addr = addr
	}
}

// WithDialer replaces the network dialer.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithClock sets the clock pacing reconnect attempts.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithReconnectInterval sets the spacing between reconnect attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithLimits bounds password and id length.
func WithLimits(l session.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNotify registers a hook run after every document change.
func WithNotify(fn func()) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// WithStatus registers a hook for transient status messages.
func WithStatus(fn func(msg string)) Option {
	return func(o *options) {
		o.status = fn
	}
}

// Client is the collaboration context of one editor process.
type Client struct {
	conn   *transport.Conn
	coord  *coordinator.Coordinator
	hs     *session.Handshaker
	policy *transport.Policy
	logger *zap.Logger
	status func(string)

	sess atomic.Pointer[session.Session]

	// mu serializes session changes and shutdown.
	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a Client that takes ownership of doc. Nothing is dialed
// until Create or Join.
func NewClient(doc *document.Document, prompter session.Prompter, opts ...Option) *Client {
	o := options{
		addr: net.JoinHostPort(DefaultServerAddress, strconv.Itoa(DefaultServerPort)),
		limits: session.Limits{
			MaxPasswordLength: session.DefaultMaxPasswordLength,
			SessionIDLength:   session.DefaultSessionIDLength,
		},
		logger: zap.NewNop(),
		status: func(string) {},
	}
	for _, opt := range opts {
		opt(&o)
	}

	topts := []transport.Option{transport.WithLogger(o.logger)}
	if o.dialer != nil {
		topts = append(topts, transport.WithDialer(o.dialer))
	}
	conn := transport.New(o.addr, topts...)

	copts := []coordinator.Option{
		coordinator.WithTransmitter(conn),
		coordinator.WithLogger(o.logger),
	}
	if o.notify != nil {
		copts = append(copts, coordinator.WithNotify(o.notify))
	}
	coord := coordinator.New(doc, copts...)

	return &Client{
		conn:   conn,
		coord:  coord,
		hs:     session.NewHandshaker(conn, coord, prompter, session.WithLimits(o.limits), session.WithLogger(o.logger)),
		policy: transport.NewPolicy(o.clock, o.interval),
		logger: o.logger,
		status: o.status,
	}
}

// Create registers a new session hosted by this client.
func (c *Client) Create(ctx context.Context) (*session.Session, error) {
	return c.establish(ctx, c.hs.Create)
}

// Join joins an existing session and replaces the document with the host's
// snapshot.
func (c *Client) Join(ctx context.Context) (*session.Session, error) {
	return c.establish(ctx, c.hs.Join)
}

// establish runs a handshake on a fresh connection. The listener of any
// previous session is stopped first so it cannot consume the replies.
func (c *Client) establish(ctx context.Context, handshake func(context.Context) (*session.Session, error)) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.stopListener() {
		c.sess.Store(nil)
	}

	s, err := handshake(ctx)
	if err != nil {
		return nil, err
	}
	c.sess.Store(s)
	c.startListener(s)
	return s, nil
}

func (c *Client) startListener(s *session.Session) {
	l := listener.New(c.conn, c.coord, c.policy,
		listener.WithSession(s, c.hs),
		listener.WithStatus(c.status),
		listener.WithLogger(c.logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	c.cancel, c.done = cancel, done
}

// stopListener stops the running listener, if any, and waits for it. The
// connection is closed as the listener exits.
func (c *Client) stopListener() bool {
	if c.cancel == nil {
		return false
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
	return true
}

// Resync asks the host for a fresh snapshot. The reply is applied by the
// listener.
func (c *Client) Resync() error {
	s := c.sess.Load()
	if s == nil || s.State() != session.StateActive {
		return ErrNoSession
	}
	if s.Host() {
		return ErrHostCopy
	}
	return c.conn.Send(wire.Request())
}

// Apply applies a local edit and transmits it when connected.
func (c *Client) Apply(op edit.Op) (bool, error) {
	return c.coord.ApplyLocal(op)
}

// InsertChar inserts ch before column col of row.
func (c *Client) InsertChar(ch byte, col, row int) (bool, error) {
	return c.Apply(edit.InsertChar(ch, col, row))
}

// InsertNewline splits row at col.
func (c *Client) InsertNewline(col, row int) (bool, error) {
	return c.Apply(edit.InsertNewline(col, row))
}

// DeleteChar deletes the character before col, joining rows at column 0.
func (c *Client) DeleteChar(col, row int) (bool, error) {
	return c.Apply(edit.DeleteChar(col, row))
}

// View runs fn with read access to the document.
func (c *Client) View(fn func(d *document.Document)) {
	c.coord.View(fn)
}

// Update runs fn with exclusive access to the document, for changes that
// are not replicated such as loading or saving a file.
func (c *Client) Update(fn func(d *document.Document) error) error {
	return c.coord.Update(fn)
}

// Rows returns a copy of the document rows.
func (c *Client) Rows() []string {
	return c.coord.Rows()
}

// Session returns the current session, or nil.
func (c *Client) Session() *session.Session {
	return c.sess.Load()
}

// Connected reports whether the relay connection is up.
func (c *Client) Connected() bool {
	return c.conn.Connected()
}

// SetReconnectInterval changes reconnect pacing at runtime.
func (c *Client) SetReconnectInterval(d time.Duration) {
	c.policy.SetInterval(d)
}

// ReconnectInterval returns the current reconnect spacing.
func (c *Client) ReconnectInterval() time.Duration {
	return c.policy.Interval()
}

// Close stops the listener and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stopListener()
	return c.conn.Disconnect()
}
