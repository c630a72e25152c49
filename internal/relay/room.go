package relay

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab/wire"
)

// peer is one connected client.
type peer struct {
	id     string
	conn   net.Conn
	reader *wire.Reader
	logger *zap.Logger

	sendMu sync.Mutex

	// Guarded by Server.mu.
	room *room
	// pending is set between a successful join and delivery of the
	// joiner's snapshot; ops are not forwarded to a pending peer.
	pending bool
}

// send writes b as one message.
func (p *peer) send(b []byte) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	_, err := p.conn.Write(b)
	return err
}

// waiter is a peer expecting the next snapshot from the host.
type waiter struct {
	p      *peer
	header bool
}

// room is a session on the relay.
type room struct {
	id       string
	password string

	participants map[*peer]struct{}
	host         *peer
	// waiters are served in request order by the host's responses.
	waiters []waiter
}

func newRoom(id, password string, host *peer) *room {
	return &room{
		id:           id,
		password:     password,
		participants: map[*peer]struct{}{host: {}},
		host:         host,
	}
}

// popWaiter removes and returns the oldest waiter.
func (r *room) popWaiter() (waiter, bool) {
	if len(r.waiters) == 0 {
		return waiter{}, false
	}
	w := r.waiters[0]
	r.waiters = r.waiters[1:]
	return w, true
}

// pickHost chooses a new host among the remaining participants, preferring
// peers that already hold a document and are not excluded. The room must
// not be empty.
func (r *room) pickHost(exclude map[*peer]bool) *peer {
	var pending, excluded *peer
	for p := range r.participants {
		switch {
		case exclude[p]:
			excluded = p
		case p.pending:
			pending = p
		default:
			return p
		}
	}
	if pending != nil {
		return pending
	}
	return excluded
}
