package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab/wire"
)

// Default field limits.
const (
	DefaultMaxPasswordLength = 32
	DefaultSessionIDLength   = 20
)

// State is the handshake state of a Session.
type State int

const (
	// StateIdle means no session is established.
	StateIdle State = iota
	// StateAwaitingAck means a request was sent and the reply is pending.
	StateAwaitingAck
	// StateActive means the relay accepted the session.
	StateActive
	// StateRejected means the relay answered with something unusable.
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateActive:
		return "active"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Session is an authenticated collaboration context. It lives only in
// memory and is retained so the listener can rejoin after a reconnect.
type Session struct {
	mu       sync.Mutex
	id       string
	password string
	state    State
	host     bool
}

// NewSession returns an active session for an id and password agreed out of
// band.
func NewSession(id, password string, host bool) *Session {
	return &Session{id: id, password: password, state: StateActive, host: host}
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Password returns the shared secret.
func (s *Session) Password() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.password
}

// State returns the handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Host reports whether this process hosts the session, either because it
// created it or because the relay promoted it.
func (s *Session) Host() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// Promote records that the relay made this process the host after the
// previous host left.
func (s *Session) Promote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = true
}

func (s *Session) set(id, password string, state State, host bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.password, s.state, s.host = id, password, state, host
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Conn is the transport used by the handshake.
type Conn interface {
	Connect(ctx context.Context) error
	Connected() bool
	Send(b []byte) error
	Receive() (string, error)
}

// Replica receives snapshots.
type Replica interface {
	ReplaceAll(rows []string)
}

// Limits bounds user-supplied fields.
type Limits struct {
	MaxPasswordLength int
	SessionIDLength   int
}

// Handshaker runs create, join and rejoin exchanges.
type Handshaker struct {
	conn     Conn
	replica  Replica
	prompter Prompter
	limits   Limits
	logger   *zap.Logger
}

// Option configures a Handshaker.
type Option func(*Handshaker)

// WithLimits overrides the default field limits. Zero fields keep their
// defaults.
func WithLimits(l Limits) Option {
	return func(h *Handshaker) {
		if l.MaxPasswordLength > 0 {
			h.limits.MaxPasswordLength = l.MaxPasswordLength
		}
		if l.SessionIDLength > 0 {
			h.limits.SessionIDLength = l.SessionIDLength
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handshaker) {
		h.logger = l
	}
}

// NewHandshaker creates a Handshaker.
func NewHandshaker(conn Conn, replica Replica, prompter Prompter, opts ...Option) *Handshaker {
	h := &Handshaker{
		conn:     conn,
		replica:  replica,
		prompter: prompter,
		limits: Limits{
			MaxPasswordLength: DefaultMaxPasswordLength,
			SessionIDLength:   DefaultSessionIDLength,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handshaker) ensureConnected(ctx context.Context) error {
	if h.conn.Connected() {
		return nil
	}
	return h.conn.Connect(ctx)
}

// validField reports whether s can travel as a single wire field.
func validField(s string, max int) bool {
	return s != "" && len(s) <= max && !strings.ContainsAny(s, " \t\r\n\x00")
}

// askField prompts until the reply is a valid single field.
func (h *Handshaker) askField(ctx context.Context, p Prompt) (string, error) {
	for {
		reply, err := h.prompter.Ask(ctx, p)
		if err != nil {
			return "", err
		}
		if validField(reply, p.MaxLen) {
			return reply, nil
		}
		if !strings.HasPrefix(p.Message, "Invalid value. ") {
			p.Message = "Invalid value. " + p.Message
		}
	}
}

func (h *Handshaker) askPassword(ctx context.Context, message string) (string, error) {
	return h.askField(ctx, Prompt{
		Message: message,
		MaxLen:  h.limits.MaxPasswordLength,
		Secret:  true,
	})
}

func (h *Handshaker) askID(ctx context.Context) (string, error) {
	return h.askField(ctx, Prompt{
		Message: "Enter id: (ESC to cancel)",
		MaxLen:  h.limits.SessionIDLength,
	})
}

// Create connects if needed, asks for a password and registers a new
// session. The reply is the session id.
func (h *Handshaker) Create(ctx context.Context) (*Session, error) {
	if err := h.ensureConnected(ctx); err != nil {
		return nil, &Error{Op: "create", Err: err}
	}
	password, err := h.askPassword(ctx, "Set password: (ESC to cancel)")
	if err != nil {
		return nil, &Error{Op: "create", Err: err}
	}

	s := &Session{}
	id, err := h.create(s, password)
	if err != nil {
		return nil, err
	}
	h.logger.Info("session created", zap.String("session", id))
	return s, nil
}

func (h *Handshaker) create(s *Session, password string) (string, error) {
	s.setState(StateAwaitingAck)
	if err := h.conn.Send(wire.Create(password)); err != nil {
		s.setState(StateIdle)
		return "", &Error{Op: "create", Err: err}
	}
	id, err := h.conn.Receive()
	if err != nil {
		s.setState(StateIdle)
		return "", &Error{Op: "create", Err: err}
	}
	if id == "" {
		s.setState(StateIdle)
		return "", &Error{Op: "create", Err: ErrEmptyReply}
	}
	s.set(id, password, StateActive, true)
	return id, nil
}

// Join connects if needed and asks for an id and password until the relay
// accepts them. An "invalid id" reply re-asks only the id and "invalid
// pass" only the password. After success the snapshot sent by the relay is
// applied to the replica.
func (h *Handshaker) Join(ctx context.Context) (*Session, error) {
	if err := h.ensureConnected(ctx); err != nil {
		return nil, &Error{Op: "join", Err: err}
	}

	s := &Session{}
	needID, needPass := true, true
	var id, password string
	for {
		var err error
		if needID {
			if id, err = h.askID(ctx); err != nil {
				return nil, &Error{Op: "join", Err: err}
			}
		}
		if needPass {
			if password, err = h.askPassword(ctx, "Enter password: (ESC to cancel)"); err != nil {
				return nil, &Error{Op: "join", Err: err}
			}
		}

		reply, err := h.join(s, id, password)
		if err != nil {
			return nil, &Error{Op: "join", Err: err}
		}
		switch reply {
		case wire.ReplySuccess:
		case wire.ReplyInvalidID:
			h.logger.Info("join refused", zap.String("reply", reply))
			needID, needPass = true, false
			continue
		case wire.ReplyInvalidPass:
			h.logger.Info("join refused", zap.String("reply", reply))
			needID, needPass = false, true
			continue
		default:
			s.setState(StateRejected)
			return nil, &Error{Op: "join", Err: fmt.Errorf("%w: unexpected reply %q", wire.ErrProtocol, reply)}
		}
		break
	}

	if err := h.receiveSnapshot(); err != nil {
		s.setState(StateIdle)
		return nil, err
	}
	s.set(id, password, StateActive, false)
	h.logger.Info("session joined", zap.String("session", id))
	return s, nil
}

// join sends one join request and returns the reply.
func (h *Handshaker) join(s *Session, id, password string) (string, error) {
	s.setState(StateAwaitingAck)
	if err := h.conn.Send(wire.Join(id, password)); err != nil {
		s.setState(StateIdle)
		return "", err
	}
	reply, err := h.conn.Receive()
	if err != nil {
		s.setState(StateIdle)
		return "", err
	}
	return reply, nil
}

// Rejoin re-establishes s on a fresh connection without prompting. A host
// whose session no longer exists on the relay registers it again with the
// same password, which yields a new id.
func (h *Handshaker) Rejoin(ctx context.Context, s *Session) error {
	if err := h.ensureConnected(ctx); err != nil {
		return &Error{Op: "rejoin", Err: err}
	}
	id, password, host := s.ID(), s.Password(), s.Host()

	reply, err := h.join(s, id, password)
	if err != nil {
		return &Error{Op: "rejoin", Err: err}
	}
	switch reply {
	case wire.ReplySuccess:
		if err := h.receiveSnapshot(); err != nil {
			s.setState(StateIdle)
			return err
		}
		s.set(id, password, StateActive, false)
		return nil
	case wire.ReplyInvalidID:
		if host {
			newID, err := h.create(s, password)
			if err != nil {
				return err
			}
			h.logger.Info("session recreated", zap.String("old", id), zap.String("session", newID))
			return nil
		}
	}
	s.setState(StateRejected)
	return &Error{Op: "rejoin", Err: fmt.Errorf("%w: %q", ErrRejected, reply)}
}

func (h *Handshaker) receiveSnapshot() error {
	rows, err := ReceiveSnapshot(h.conn)
	if err != nil {
		return err
	}
	h.replica.ReplaceAll(rows)
	h.logger.Debug("snapshot applied", zap.Int("rows", len(rows)))
	return nil
}

// Receiver yields tokens.
type Receiver interface {
	Receive() (string, error)
}

// ReceiveSnapshot reads a row count and that many rows. Nothing is returned
// unless every row arrived.
func ReceiveSnapshot(r Receiver) ([]string, error) {
	rows, err := wire.ReadSnapshot(r.Receive)
	if err != nil {
		return nil, &Error{Op: "snapshot", Err: err}
	}
	return rows, nil
}
