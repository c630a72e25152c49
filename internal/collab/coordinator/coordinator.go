// Package coordinator serializes access to the shared document between the
// local input path and the remote apply path.
//
// A single mutex guards every read and mutation. A local edit is applied
// and then transmitted while the lock is held, so a remote edit can never
// be applied between the two. A failed transmission does not roll the
// local edit back.
package coordinator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab/wire"
	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/engine/edit"
)

// Transmitter sends encoded messages to peers.
type Transmitter interface {
	Connected() bool
	Send(b []byte) error
}

// Coordinator owns the document.
type Coordinator struct {
	mu  sync.Mutex
	doc *document.Document

	tx       Transmitter
	onChange func()
	logger   *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTransmitter sets where local edits and snapshots are sent.
func WithTransmitter(tx Transmitter) Option {
	return func(c *Coordinator) {
		c.tx = tx
	}
}

// WithNotify registers a hook invoked after every mutation, outside the lock.
func WithNotify(fn func()) Option {
	return func(c *Coordinator) {
		c.onChange = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// New creates a Coordinator that takes ownership of doc. Callers must not
// touch doc directly afterwards.
func New(doc *document.Document, opts ...Option) *Coordinator {
	if doc == nil {
		doc = document.New()
	}
	c := &Coordinator{doc: doc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTransmitter replaces the transmitter.
func (c *Coordinator) SetTransmitter(tx Transmitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tx = tx
}

// SetNotify replaces the change hook.
func (c *Coordinator) SetNotify(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *Coordinator) notify(fn func()) {
	if fn != nil {
		fn()
	}
}

// ApplyLocal applies op and then, if connected, transmits it. It reports
// whether the document changed. A transmission error is returned with the
// edit still applied. Ops that change nothing are not transmitted.
func (c *Coordinator) ApplyLocal(op edit.Op) (bool, error) {
	c.mu.Lock()
	applied := c.doc.Apply(op)
	var err error
	if applied && c.tx != nil && c.tx.Connected() {
		err = c.tx.Send(wire.EncodeOp(op))
		if err != nil {
			c.logger.Warn("transmit local edit", zap.Stringer("op", op), zap.Error(err))
		}
	}
	fn := c.onChange
	c.mu.Unlock()

	if applied {
		c.notify(fn)
	}
	return applied, err
}

// ApplyRemote applies op received from a peer and reports whether the
// document changed. Out-of-range ops are dropped silently.
func (c *Coordinator) ApplyRemote(op edit.Op) bool {
	c.mu.Lock()
	applied := c.doc.Apply(op)
	fn := c.onChange
	c.mu.Unlock()

	if !applied {
		c.logger.Debug("remote edit ignored", zap.Stringer("op", op))
		return false
	}
	c.notify(fn)
	return true
}

// ReplaceAll overwrites the document with a snapshot.
func (c *Coordinator) ReplaceAll(rows []string) {
	c.mu.Lock()
	c.doc.Replace(rows)
	fn := c.onChange
	c.mu.Unlock()
	c.notify(fn)
}

// SendSnapshot transmits the whole document as one message, optionally
// preceded by a response header. The document cannot change while the
// snapshot is being written.
func (c *Coordinator) SendSnapshot(withHeader bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return 0, nil
	}
	rows := c.doc.Rows()
	return len(rows), c.tx.Send(wire.Snapshot(rows, withHeader))
}

// View runs fn with the document locked. fn must not retain d or call back
// into the Coordinator.
func (c *Coordinator) View(fn func(d *document.Document)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.doc)
}

// Update runs fn with the document locked, for local bookkeeping that is
// not an edit (load, save, mark clean). The change hook runs afterwards.
func (c *Coordinator) Update(fn func(d *document.Document) error) error {
	c.mu.Lock()
	err := fn(c.doc)
	cb := c.onChange
	c.mu.Unlock()
	c.notify(cb)
	return err
}

// Rows returns a copy of the document rows.
func (c *Coordinator) Rows() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Rows()
}
