package collab_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/dshills/coled/internal/collab"
	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/collab/session/sessionmock"
	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/relay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startRelay(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.New().Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

// answers replies to prompts in order.
type answers struct {
	mu      sync.Mutex
	replies []string
	asked   []string
}

func (a *answers) Ask(_ context.Context, p session.Prompt) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asked = append(a.asked, p.Message)
	if len(a.replies) == 0 {
		return "", session.ErrCancelled
	}
	r := a.replies[0]
	a.replies = a.replies[1:]
	return r, nil
}

func newClient(t *testing.T, addr string, rows []string, p session.Prompter, opts ...collab.Option) *collab.Client {
	t.Helper()
	doc := document.NewFromLines(rows)
	c := collab.NewClient(doc, p, append([]collab.Option{collab.WithAddress(addr)}, opts...)...)
	t.Cleanup(func() { c.Close() })
	return c
}

func eventuallyRows(t *testing.T, c *collab.Client, want []string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, c.Rows())
	}, 5*time.Second, 5*time.Millisecond, "rows: %q", c.Rows())
}

func TestCreateThenJoinReplicates(t *testing.T) {
	addr := startRelay(t)
	ctx := context.Background()

	host := newClient(t, addr, []string{"hello", "world", "!"}, &answers{replies: []string{"pw"}})
	s, err := host.Create(ctx)
	require.NoError(t, err)
	assert.True(t, s.Host())
	assert.Len(t, s.ID(), 20)
	assert.True(t, host.Connected())

	joinPrompts := &answers{replies: []string{s.ID(), "pw"}}
	guest := newClient(t, addr, []string{"stale"}, joinPrompts)
	gs, err := guest.Join(ctx)
	require.NoError(t, err)
	assert.False(t, gs.Host())
	assert.Equal(t, s.ID(), gs.ID())
	assert.Equal(t, []string{"hello", "world", "!"}, guest.Rows())
	assert.Equal(t, session.StateActive, guest.Session().State())

	ok, err := host.InsertChar('X', 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	eventuallyRows(t, guest, []string{"Xhello", "world", "!"})

	_, err = guest.DeleteChar(1, 1)
	require.NoError(t, err)
	eventuallyRows(t, host, []string{"Xhello", "orld", "!"})

	_, err = guest.InsertNewline(3, 0)
	require.NoError(t, err)
	eventuallyRows(t, host, []string{"Xhe", "llo", "orld", "!"})
}

func TestJoinWrongPasswordReasksPassword(t *testing.T) {
	addr := startRelay(t)
	ctx := context.Background()

	host := newClient(t, addr, []string{"a"}, &answers{replies: []string{"right"}})
	s, err := host.Create(ctx)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	prompter := sessionmock.NewMockPrompter(ctrl)
	gomock.InOrder(
		prompter.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(s.ID(), nil),
		prompter.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("wrong", nil),
		prompter.EXPECT().Ask(gomock.Any(), gomock.Any()).Return("right", nil),
	)

	guest := newClient(t, addr, nil, prompter)
	_, err = guest.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, guest.Rows())
}

func TestResync(t *testing.T) {
	addr := startRelay(t)
	ctx := context.Background()

	host := newClient(t, addr, []string{"one"}, &answers{replies: []string{"pw"}})
	s, err := host.Create(ctx)
	require.NoError(t, err)
	guest := newClient(t, addr, nil, &answers{replies: []string{s.ID(), "pw"}})
	_, err = guest.Join(ctx)
	require.NoError(t, err)

	// Diverge the host without replicating.
	require.NoError(t, host.Update(func(d *document.Document) error {
		d.InsertLine(d.NumLines(), []byte("two"))
		return nil
	}))

	require.NoError(t, guest.Resync())
	eventuallyRows(t, guest, []string{"one", "two"})

	assert.ErrorIs(t, host.Resync(), collab.ErrHostCopy)
}

func TestGuestTakesOverWhenHostLeaves(t *testing.T) {
	addr := startRelay(t)
	ctx := context.Background()

	host := newClient(t, addr, []string{"doc"}, &answers{replies: []string{"pw"}})
	s, err := host.Create(ctx)
	require.NoError(t, err)
	guest := newClient(t, addr, nil, &answers{replies: []string{s.ID(), "pw"}})
	gs, err := guest.Join(ctx)
	require.NoError(t, err)
	require.False(t, gs.Host())

	require.NoError(t, host.Close())
	require.Eventually(t, gs.Host, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, guest.Resync(), collab.ErrHostCopy)

	// A newcomer gets its snapshot from the promoted guest.
	late := newClient(t, addr, nil, &answers{replies: []string{s.ID(), "pw"}})
	_, err = late.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, late.Rows())
}

func TestOfflineEditsApplyLocally(t *testing.T) {
	var notified int
	var mu sync.Mutex
	c := collab.NewClient(document.New(), &answers{}, collab.WithNotify(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	}))
	defer c.Close()

	ok, err := c.InsertChar('a', 0, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, c.Rows())
	assert.False(t, c.Connected())
	assert.Nil(t, c.Session())
	assert.ErrorIs(t, c.Resync(), collab.ErrNoSession)

	mu.Lock()
	assert.Equal(t, 1, notified)
	mu.Unlock()
}

func TestCreateFailsWithoutRelay(t *testing.T) {
	dialErr := errors.New("connection refused")
	c := collab.NewClient(document.New(), &answers{replies: []string{"pw"}},
		collab.WithDialer(failingDialer{err: dialErr}))
	defer c.Close()

	_, err := c.Create(context.Background())
	require.ErrorIs(t, err, dialErr)
	assert.Nil(t, c.Session())
}

func TestCancelledPromptAbortsJoin(t *testing.T) {
	addr := startRelay(t)
	c := newClient(t, addr, []string{"mine"}, &answers{})
	_, err := c.Join(context.Background())
	require.ErrorIs(t, err, session.ErrCancelled)
	assert.Equal(t, []string{"mine"}, c.Rows())
}

func TestClosedClient(t *testing.T) {
	c := collab.NewClient(document.New(), &answers{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Create(context.Background())
	assert.ErrorIs(t, err, collab.ErrClosed)
}

func TestSetReconnectInterval(t *testing.T) {
	c := collab.NewClient(document.New(), &answers{}, collab.WithReconnectInterval(3*time.Second))
	defer c.Close()
	assert.Equal(t, 3*time.Second, c.ReconnectInterval())
	c.SetReconnectInterval(7 * time.Second)
	assert.Equal(t, 7*time.Second, c.ReconnectInterval())
}

type failingDialer struct{ err error }

func (d failingDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return nil, d.err
}
