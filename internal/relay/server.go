// Package relay implements the session relay that collaborating editors
// connect to. A session is created by its first participant, the host, who
// supplies document snapshots to later joiners. Edits are forwarded to
// every other participant.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab/wire"
)

// DefaultListenAddress is where the relay listens unless configured.
const DefaultListenAddress = "localhost:3018"

// Server is the relay.
type Server struct {
	logger *zap.Logger
	newID  func() string

	mu    sync.Mutex
	rooms map[string]*room
	peers map[*peer]struct{}

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		logger: zap.NewNop(),
		newID:  func() string { return xid.New().String() },
		rooms:  make(map[string]*room),
		peers:  make(map[*peer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or accepting fails.
// On return ln and every peer connection are closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("relay listening", zap.String("addr", ln.Addr().String()))
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	var errs error
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				errs = fmt.Errorf("relay: accept: %w", err)
			}
			break
		}
		p := s.addPeer(nc)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(p)
		}()
	}
	if stop() {
		errs = multierr.Append(errs, ignoreClosed(ln.Close()))
	}
	errs = multierr.Append(errs, s.closePeers())
	s.wg.Wait()
	s.logger.Info("relay stopped")
	return errs
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) addPeer(nc net.Conn) *peer {
	id := uuid.NewString()
	p := &peer{
		id:     id,
		conn:   nc,
		reader: wire.NewReader(nc),
		logger: s.logger.With(zap.String("peer", id), zap.String("remote", nc.RemoteAddr().String())),
	}
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	p.logger.Info("peer connected")
	return p
}

func (s *Server) closePeers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs error
	for p := range s.peers {
		errs = multierr.Append(errs, ignoreClosed(p.conn.Close()))
	}
	return errs
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *Server) handle(p *peer) {
	defer s.leave(p)
	for {
		tok, err := p.reader.ReadToken()
		if err != nil {
			p.logger.Info("peer left", zap.Error(err))
			return
		}
		if err := s.dispatch(p, tok); err != nil {
			p.logger.Info("peer left", zap.Error(err))
			return
		}
	}
}

// dispatch handles one message. Only read failures are returned; anything
// malformed is ignored.
func (s *Server) dispatch(p *peer, tok string) error {
	fields := wire.Fields(tok)
	if len(fields) == 0 {
		s.reply(p, wire.Token(wire.ReplyUnknown))
		return nil
	}

	switch {
	case fields[0] == wire.CmdCreate && len(fields) == 2:
		s.create(p, fields[1])
	case fields[0] == wire.CmdJoin && len(fields) == 3:
		s.join(p, fields[1], fields[2])
	case fields[0] == wire.CmdRequest && len(fields) == 1:
		s.request(p)
	case fields[0] == wire.CmdResponse && len(fields) == 1:
		return s.response(p)
	case wire.IsOp(fields[0]):
		op, err := p.reader.ReadOp(tok)
		if err != nil {
			if errors.Is(err, wire.ErrProtocol) {
				p.logger.Debug("ignoring malformed op", zap.String("msg", tok), zap.Error(err))
				return nil
			}
			return err
		}
		s.forward(p, wire.EncodeOp(op))
	default:
		p.logger.Debug("ignoring message", zap.String("msg", tok))
	}
	return nil
}

func (s *Server) reply(p *peer, b []byte) {
	if err := p.send(b); err != nil {
		p.logger.Debug("send failed", zap.Error(err))
	}
}

func (s *Server) create(p *peer, password string) {
	s.mu.Lock()
	dropped, promoted := s.detach(p)
	r := newRoom(s.newID(), password, p)
	s.rooms[r.id] = r
	p.room = r
	s.mu.Unlock()

	s.settle(dropped, promoted)
	p.logger.Info("session created", zap.String("session", r.id))
	s.reply(p, wire.Token(r.id))
}

// join admits p to the session and asks the host for a snapshot on its
// behalf. A join attempt always leaves the peer's current session.
func (s *Server) join(p *peer, id, password string) {
	s.mu.Lock()
	dropped, promoted := s.detach(p)
	r, ok := s.rooms[id]
	var reply string
	switch {
	case !ok:
		reply = wire.ReplyInvalidID
	case r.password != password:
		reply = wire.ReplyInvalidPass
	default:
		reply = wire.ReplySuccess
		r.participants[p] = struct{}{}
		r.waiters = append(r.waiters, waiter{p: p})
		p.room = r
		p.pending = true
	}
	var host *peer
	if ok {
		host = r.host
	}
	s.mu.Unlock()

	s.settle(dropped, promoted)
	s.reply(p, wire.Token(reply))
	if reply != wire.ReplySuccess {
		p.logger.Info("join refused", zap.String("session", id), zap.String("reply", reply))
		return
	}
	p.logger.Info("session joined", zap.String("session", id), zap.String("host", host.id))
	s.reply(host, wire.Request())
}

// request asks the host for a fresh snapshot, delivered with a response
// header. Requests from the host or from peers outside a session are
// ignored.
func (s *Server) request(p *peer) {
	s.mu.Lock()
	r := p.room
	if r == nil || r.host == p {
		s.mu.Unlock()
		p.logger.Debug("ignoring request")
		return
	}
	r.waiters = append(r.waiters, waiter{p: p, header: true})
	host := r.host
	s.mu.Unlock()

	s.reply(host, wire.Request())
}

// response reads a snapshot from p and hands it to the oldest waiter of
// p's session, provided p is its host.
func (s *Server) response(p *peer) error {
	rows, err := wire.ReadSnapshot(p.reader.ReadToken)
	if err != nil && !errors.Is(err, wire.ErrProtocol) {
		return err
	}

	s.mu.Lock()
	r := p.room
	var w waiter
	var ok bool
	if r != nil && r.host == p {
		w, ok = r.popWaiter()
	}
	if ok && w.p.room != r {
		ok = false
	}
	s.mu.Unlock()

	if err != nil {
		p.logger.Warn("malformed snapshot", zap.Error(err))
		// The waiter cannot be served; closing it makes its client
		// reconnect and join again.
		if ok {
			w.p.logger.Info("dropping peer after malformed snapshot")
			_ = w.p.conn.Close()
		}
		return nil
	}
	if !ok {
		p.logger.Debug("discarding unrequested snapshot", zap.Int("rows", len(rows)))
		return nil
	}

	if err := w.p.send(wire.Snapshot(rows, w.header)); err != nil {
		w.p.logger.Debug("snapshot delivery failed", zap.Error(err))
	}
	s.mu.Lock()
	w.p.pending = false
	s.mu.Unlock()
	w.p.logger.Debug("snapshot delivered", zap.Int("rows", len(rows)))
	return nil
}

// forward sends msg to every settled participant of p's session except p.
func (s *Server) forward(p *peer, msg []byte) {
	s.mu.Lock()
	r := p.room
	if r == nil || p.pending {
		s.mu.Unlock()
		return
	}
	targets := make([]*peer, 0, len(r.participants))
	for q := range r.participants {
		if q != p && !q.pending {
			targets = append(targets, q)
		}
	}
	s.mu.Unlock()

	for _, q := range targets {
		s.reply(q, msg)
	}
}

func (s *Server) leave(p *peer) {
	s.mu.Lock()
	dropped, promoted := s.detach(p)
	delete(s.peers, p)
	s.mu.Unlock()

	s.settle(dropped, promoted)
	if err := ignoreClosed(p.conn.Close()); err != nil {
		p.logger.Debug("close failed", zap.Error(err))
	}
}

// detach removes p from its session. The session is deleted once empty.
// When the host leaves, a new host is chosen and returned together with the
// peers still waiting on the old host, whose connections must be closed.
// Callers hold s.mu.
func (s *Server) detach(p *peer) (dropped []*peer, promoted *peer) {
	r := p.room
	if r == nil {
		return nil, nil
	}
	delete(r.participants, p)
	p.room = nil
	p.pending = false

	if len(r.participants) == 0 {
		delete(s.rooms, r.id)
		s.logger.Info("session deleted", zap.String("session", r.id))
		return nil, nil
	}
	if r.host != p {
		return nil, nil
	}

	exclude := make(map[*peer]bool)
	for _, w := range r.waiters {
		if w.p.room == r && !exclude[w.p] {
			dropped = append(dropped, w.p)
			exclude[w.p] = true
		}
	}
	r.waiters = nil

	r.host = r.pickHost(exclude)
	s.logger.Info("session host changed", zap.String("session", r.id), zap.String("host", r.host.id))
	if exclude[r.host] {
		return dropped, nil
	}
	return dropped, r.host
}

// settle closes the dropped peers and tells a promoted peer that it now
// hosts its session.
func (s *Server) settle(dropped []*peer, promoted *peer) {
	closeAll(dropped)
	if promoted != nil {
		s.reply(promoted, wire.Host())
	}
}

func closeAll(peers []*peer) {
	for _, p := range peers {
		p.logger.Info("dropping peer waiting on departed host")
		_ = p.conn.Close()
	}
}
