// Package listener runs the background task that keeps the relay
// connection alive and applies edits arriving from the peer.
package listener

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/collab/transport"
	"github.com/dshills/coled/internal/collab/wire"
	"github.com/dshills/coled/internal/engine/edit"
)

// Conn is the transport the listener drives.
type Conn interface {
	Connect(ctx context.Context) error
	Connected() bool
	Receive() (string, error)
	Disconnect() error
}

// Replica is where remote edits and snapshots go.
type Replica interface {
	ApplyRemote(op edit.Op) bool
	ReplaceAll(rows []string)
	SendSnapshot(withHeader bool) (int, error)
}

// Rejoiner re-establishes a session after a reconnect.
type Rejoiner interface {
	Rejoin(ctx context.Context, s *session.Session) error
}

// Listener is the single background task of a collaboration client.
type Listener struct {
	conn    Conn
	replica Replica
	policy  *transport.Policy

	session  *session.Session
	rejoiner Rejoiner

	status func(msg string)
	logger *zap.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithSession makes the listener rejoin s through r after every reconnect.
func WithSession(s *session.Session, r Rejoiner) Option {
	return func(l *Listener) {
		l.session, l.rejoiner = s, r
	}
}

// WithStatus registers a hook for transient user-facing messages.
func WithStatus(fn func(msg string)) Option {
	return func(l *Listener) {
		l.status = fn
	}
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Listener) {
		l.logger = lg
	}
}

// New creates a Listener.
func New(conn Conn, replica Replica, policy *transport.Policy, opts ...Option) *Listener {
	l := &Listener{
		conn:    conn,
		replica: replica,
		policy:  policy,
		status:  func(string) {},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.policy == nil {
		l.policy = transport.NewPolicy(nil, 0)
	}
	return l
}

// Run loops until ctx is done: reconnecting under the policy while
// disconnected, otherwise receiving and dispatching messages. Cancelling
// ctx closes the connection to unblock a pending receive.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.Disconnect()
	})
	defer stop()
	defer func() {
		_ = l.conn.Disconnect()
	}()

	for ctx.Err() == nil {
		if !l.conn.Connected() {
			l.reconnect(ctx)
			continue
		}

		tok, err := l.conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.logger.Warn("receive failed", zap.Error(err))
			l.status("Connection lost")
			continue
		}
		l.dispatch(ctx, tok)
	}
	return ctx.Err()
}

func (l *Listener) reconnect(ctx context.Context) {
	if err := l.policy.Wait(ctx); err != nil {
		return
	}
	l.policy.Attempted()
	if err := l.conn.Connect(ctx); err != nil {
		l.logger.Debug("reconnect failed", zap.Error(err))
		l.status("Connect error")
		return
	}
	l.status("Reconnected")

	if l.session == nil || l.rejoiner == nil {
		return
	}
	before := l.session.ID()
	if err := l.rejoiner.Rejoin(ctx, l.session); err != nil {
		l.logger.Warn("rejoin failed", zap.String("session", before), zap.Error(err))
		l.status("Rejoin failed")
		return
	}
	if id := l.session.ID(); id != before {
		l.status("Session recreated, your id is " + id)
		return
	}
	l.status("Rejoined session")
}

// dispatch handles one inbound message. Failures affect only that message.
func (l *Listener) dispatch(ctx context.Context, tok string) {
	fields := wire.Fields(tok)
	if len(fields) == 0 {
		l.protocolError(fmt.Errorf("%w: empty message", wire.ErrProtocol))
		return
	}

	switch keyword := fields[0]; {
	case keyword == wire.CmdRequest:
		l.status("Received request")
		n, err := l.replica.SendSnapshot(true)
		if err != nil {
			l.logger.Warn("send snapshot", zap.Error(err))
			l.status("Server send rows error")
			return
		}
		l.status(fmt.Sprintf("Successful send %d rows", n))

	case keyword == wire.CmdResponse:
		rows, err := session.ReceiveSnapshot(l.conn)
		if err != nil {
			l.fail("receive snapshot", err)
			return
		}
		l.replica.ReplaceAll(rows)
		l.status(fmt.Sprintf("Resynchronized %d rows", len(rows)))

	case keyword == wire.CmdHost:
		if l.session != nil {
			l.session.Promote()
		}
		l.logger.Info("promoted to host")
		l.status("You are now the host")

	case wire.IsOp(keyword):
		op, err := wire.ReadOp(tok, l.conn.Receive)
		if err != nil {
			l.fail("decode op", err)
			return
		}
		l.replica.ApplyRemote(op)

	default:
		l.protocolError(fmt.Errorf("%w: unexpected message %q", wire.ErrProtocol, tok))
	}
}

// fail reports err as a protocol error unless the transport broke, in which
// case the reconnect path takes over.
func (l *Listener) fail(what string, err error) {
	if errors.Is(err, wire.ErrProtocol) {
		l.protocolError(fmt.Errorf("%s: %w", what, err))
		return
	}
	l.logger.Warn(what, zap.Error(err))
	l.status("Connection lost")
}

func (l *Listener) protocolError(err error) {
	l.logger.Warn("protocol error", zap.Error(err))
	l.status("Protocol error")
}
