package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/coled/internal/clock/clocktest"
	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/collab/transport"
	"github.com/dshills/coled/internal/engine/edit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errClosed = errors.New("closed")

// fakeConn feeds tokens from a channel. Disconnect unblocks Receive.
type fakeConn struct {
	mu        sync.Mutex
	connected bool
	done      chan struct{}
	tokens    chan string
	connect   func() error
}

func newFakeConn(connected bool) *fakeConn {
	return &fakeConn{
		connected: connected,
		done:      make(chan struct{}),
		tokens:    make(chan string, 64),
	}
}

func (c *fakeConn) Connect(context.Context) error {
	if c.connect != nil {
		if err := c.connect(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		c.connected = true
		c.done = make(chan struct{})
	}
	return nil
}

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Receive() (string, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case tok := <-c.tokens:
		return tok, nil
	case <-done:
		return "", errClosed
	}
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		c.connected = false
		close(c.done)
	}
	return nil
}

func (c *fakeConn) feed(toks ...string) {
	for _, t := range toks {
		c.tokens <- t
	}
}

type fakeReplica struct {
	mu        sync.Mutex
	ops       []edit.Op
	rows      []string
	snapshots []bool
	sendErr   error
}

func (r *fakeReplica) ApplyRemote(op edit.Op) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return true
}

func (r *fakeReplica) ReplaceAll(rows []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
}

func (r *fakeReplica) SendSnapshot(withHeader bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, withHeader)
	return 3, r.sendErr
}

func (r *fakeReplica) snapshot() ([]edit.Op, []string, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]edit.Op(nil), r.ops...), append([]string(nil), r.rows...), append([]bool(nil), r.snapshots...)
}

type statusLog struct {
	mu   sync.Mutex
	msgs []string
}

func (s *statusLog) add(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *statusLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

func run(t *testing.T, l *Listener) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- l.Run(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, errc
}

func wait(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
		return nil
	}
}

func TestReconnectAttemptsArePaced(t *testing.T) {
	clk := clocktest.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	policy := transport.NewPolicy(clk, 25*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts []time.Time
	conn := newFakeConn(false)
	conn.connect = func() error {
		attempts = append(attempts, clk.Now())
		if len(attempts) == 6 {
			cancel()
		}
		return errors.New("connection refused")
	}

	status := &statusLog{}
	l := New(conn, &fakeReplica{}, policy, WithStatus(status.add))
	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, attempts, 6)
	for i := 1; i < len(attempts); i++ {
		gap := attempts[i].Sub(attempts[i-1])
		assert.GreaterOrEqual(t, gap, 25*time.Second, "attempt %d came %v after the previous one", i, gap)
	}
	assert.Contains(t, status.all(), "Connect error")
}

func TestReconnectIntervalChangeApplies(t *testing.T) {
	clk := clocktest.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	policy := transport.NewPolicy(clk, 25*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts []time.Time
	conn := newFakeConn(false)
	conn.connect = func() error {
		attempts = append(attempts, clk.Now())
		switch len(attempts) {
		case 2:
			policy.SetInterval(5 * time.Second)
		case 5:
			cancel()
		}
		return errors.New("connection refused")
	}

	l := New(conn, &fakeReplica{}, policy)
	_ = l.Run(ctx)

	require.Len(t, attempts, 5)
	assert.Equal(t, 25*time.Second, attempts[1].Sub(attempts[0]))
	for i := 2; i < len(attempts); i++ {
		assert.Equal(t, 5*time.Second, attempts[i].Sub(attempts[i-1]))
	}
}

func TestDispatch(t *testing.T) {
	conn := newFakeConn(true)
	replica := &fakeReplica{}
	status := &statusLog{}
	l := New(conn, replica, nil, WithStatus(status.add))
	cancel, errc := run(t, l)

	conn.feed(
		"char 97 0 0",
		"newline",
		"1",
		"0",
		"bogus",
		"",
		"char x 0 0",
		"delete 1 0",
		"request",
		"response",
		"2",
		"a",
		"b",
	)

	require.Eventually(t, func() bool {
		_, rows, _ := replica.snapshot()
		return len(rows) == 2
	}, 5*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, wait(t, errc), context.Canceled)

	ops, rows, snaps := replica.snapshot()
	assert.Equal(t, []edit.Op{
		edit.InsertChar('a', 0, 0),
		edit.InsertNewline(1, 0),
		edit.DeleteChar(1, 0),
	}, ops)
	assert.Equal(t, []string{"a", "b"}, rows)
	assert.Equal(t, []bool{true}, snaps)

	msgs := status.all()
	assert.Contains(t, msgs, "Protocol error")
	assert.Contains(t, msgs, "Successful send 3 rows")
	assert.Contains(t, msgs, "Resynchronized 2 rows")
	assert.False(t, conn.Connected(), "listener disconnects on exit")
}

func TestSnapshotSendFailureIsReported(t *testing.T) {
	conn := newFakeConn(true)
	replica := &fakeReplica{sendErr: errors.New("broken pipe")}
	status := &statusLog{}
	l := New(conn, replica, nil, WithStatus(status.add))
	cancel, errc := run(t, l)

	conn.feed("request")
	require.Eventually(t, func() bool {
		for _, m := range status.all() {
			if m == "Server send rows error" {
				return true
			}
		}
		return false
	}, 5*time.Second, time.Millisecond)
	cancel()
	wait(t, errc)
}

func TestHostNoticePromotesSession(t *testing.T) {
	conn := newFakeConn(true)
	status := &statusLog{}
	s := session.NewSession("abc", "pw", false)
	l := New(conn, &fakeReplica{}, nil, WithSession(s, &fakeRejoiner{}), WithStatus(status.add))
	cancel, errc := run(t, l)

	conn.feed("host")
	require.Eventually(t, s.Host, 5*time.Second, time.Millisecond)
	cancel()
	wait(t, errc)

	assert.Contains(t, status.all(), "You are now the host")
	assert.NotContains(t, status.all(), "Protocol error")
}

type fakeRejoiner struct {
	mu    sync.Mutex
	calls []string
	err   error
	after func()
}

func (r *fakeRejoiner) Rejoin(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	r.calls = append(r.calls, s.ID())
	after := r.after
	r.mu.Unlock()
	if after != nil {
		after()
	}
	return r.err
}

func TestRejoinAfterReconnect(t *testing.T) {
	clk := clocktest.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	conn := newFakeConn(false)
	failures := 2
	conn.connect = func() error {
		if failures > 0 {
			failures--
			return errors.New("connection refused")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rejoiner := &fakeRejoiner{after: cancel}
	status := &statusLog{}
	s := session.NewSession("abc", "pw", false)

	l := New(conn, &fakeReplica{}, transport.NewPolicy(clk, time.Second),
		WithSession(s, rejoiner), WithStatus(status.add))
	require.ErrorIs(t, l.Run(ctx), context.Canceled)

	assert.Equal(t, []string{"abc"}, rejoiner.calls)
	assert.Contains(t, status.all(), "Reconnected")
	assert.Contains(t, status.all(), "Rejoined session")
}

func TestRejoinFailureKeepsRunning(t *testing.T) {
	conn := newFakeConn(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rejoiner := &fakeRejoiner{err: errors.New("rejected")}
	status := &statusLog{}
	rejoiner.after = func() {
		// The listener stays connected after a refused rejoin and keeps
		// receiving; feed an op so the test can observe that.
		conn.feed("char 98 0 0")
	}
	replica := &fakeReplica{}
	l := New(conn, replica, nil,
		WithSession(session.NewSession("abc", "pw", false), rejoiner), WithStatus(status.add))

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		ops, _, _ := replica.snapshot()
		return len(ops) == 1
	}, 5*time.Second, time.Millisecond)
	cancel()
	wait(t, errc)
	assert.Contains(t, status.all(), "Rejoin failed")
}
