// Package app implements the interactive terminal editor: cursor movement,
// key handling, prompts, the status and message bars, and file load/save.
// Every document access goes through a Collaborator so that local edits are
// replicated and remote edits become visible on the next redraw.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/clock"
	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/renderer/backend"
)

// Defaults.
const (
	DefaultQuitTimes = 3
	DefaultStatusTTL = 5 * time.Second

	helpMessage = "HELP: Ctrl-S = save | Ctrl-Q = quit | Ctrl-N = network | Ctrl-R = resync"
)

// Collaborator owns the document and replicates local edits.
type Collaborator interface {
	Create(ctx context.Context) (*session.Session, error)
	Join(ctx context.Context) (*session.Session, error)
	Resync() error
	InsertChar(ch byte, col, row int) (bool, error)
	InsertNewline(col, row int) (bool, error)
	DeleteChar(col, row int) (bool, error)
	View(fn func(d *document.Document))
	Update(fn func(d *document.Document) error) error
}

// Option configures an Editor.
type Option func(*Editor)

// WithFilename sets the file the document was loaded from.
func WithFilename(name string) Option {
	return func(e *Editor) {
		e.filename = name
	}
}

// WithVersion sets the version shown on the welcome line.
func WithVersion(v string) Option {
	return func(e *Editor) {
		e.version = v
	}
}

// WithQuitTimes sets how many extra Ctrl-Q presses quit with unsaved changes.
func WithQuitTimes(n int) Option {
	return func(e *Editor) {
		if n >= 0 {
			e.quitTimes = n
		}
	}
}

// WithStatusTTL sets how long a status message stays visible.
func WithStatusTTL(d time.Duration) Option {
	return func(e *Editor) {
		if d > 0 {
			e.statusTTL = d
		}
	}
}

// WithClock sets the clock used to expire status messages.
func WithClock(c clock.Clock) Option {
	return func(e *Editor) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Editor is the terminal front end. Apart from SetStatus and Notify, its
// methods must be called from the goroutine running Run.
type Editor struct {
	screen backend.Backend
	collab Collaborator
	clock  clock.Clock
	logger *zap.Logger

	filename  string
	version   string
	quitTimes int
	quitLeft  int
	statusTTL time.Duration

	// cx, cy index the document; rx is the render column of cx.
	cx, cy int
	rx     int

	rowoff, coloff         int
	screenRows, screenCols int

	// prompt replaces the status message while Ask is running.
	prompt string

	mu         sync.Mutex
	statusMsg  string
	statusTime time.Time
}

// New creates an Editor drawing on screen. Attach must be called before Run.
func New(screen backend.Backend, opts ...Option) *Editor {
	e := &Editor{
		screen:    screen,
		clock:     clock.New(),
		logger:    zap.NewNop(),
		version:   "dev",
		quitTimes: DefaultQuitTimes,
		statusTTL: DefaultStatusTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.quitLeft = e.quitTimes
	return e
}

// Attach sets the collaborator the editor reads and edits through.
func (e *Editor) Attach(c Collaborator) {
	e.collab = c
}

// Notify wakes the event loop so that remote changes are drawn. Safe for
// concurrent use.
func (e *Editor) Notify() {
	e.screen.PostEvent(backend.Event{Type: backend.EventInterrupt})
}

// SetStatus shows msg on the message bar. Safe for concurrent use.
func (e *Editor) SetStatus(msg string) {
	e.setStatus(msg)
	e.Notify()
}

func (e *Editor) setStatus(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusMsg = msg
	e.statusTime = e.clock.Now()
}

// status returns the current message, or "" once it has expired.
func (e *Editor) status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.statusMsg == "" || e.clock.Now().Sub(e.statusTime) >= e.statusTTL {
		return ""
	}
	return e.statusMsg
}

// Cursor returns the cursor position in document coordinates.
func (e *Editor) Cursor() (col, row int) {
	return e.cx, e.cy
}

// Run processes terminal events until the user quits or ctx is cancelled.
// Quitting returns nil.
func (e *Editor) Run(ctx context.Context) error {
	if e.collab == nil {
		return errors.New("app: editor has no collaborator")
	}
	stop := context.AfterFunc(ctx, e.Notify)
	defer stop()

	e.resize(e.screen.Size())
	e.setStatus(helpMessage)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.refresh()
		ev := e.screen.PollEvent()
		switch ev.Type {
		case backend.EventResize:
			e.resize(ev.Width, ev.Height)
		case backend.EventKey:
			if err := e.handleKey(ctx, ev); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func (e *Editor) resize(width, height int) {
	e.screenCols = max(width, 0)
	// Two lines for the status and message bars.
	e.screenRows = max(height-2, 0)
}

func (e *Editor) dirty() bool {
	var d bool
	e.collab.View(func(doc *document.Document) {
		d = doc.Dirty()
	})
	return d
}
