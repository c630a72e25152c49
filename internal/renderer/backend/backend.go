// Package backend abstracts the terminal the editor draws on: a tcell
// implementation for real use and an in-memory one for tests.
package backend

// Style is the look of a cell. The editor only needs inverse video for its
// status bar.
type Style struct {
	Reverse bool
}

// StyleDefault is the terminal's default look.
var StyleDefault = Style{}

// EventType tells which fields of an Event are meaningful.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventResize
	// EventInterrupt carries no data; it is posted from other goroutines
	// to wake PollEvent.
	EventInterrupt
)

// Event is one input from the terminal, or a posted wake-up.
type Event struct {
	Type EventType

	Key  Key
	Rune rune // set when Key is KeyRune
	Mod  ModMask

	Width, Height int // EventResize
}

// Key names the keys the editor binds.
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace // also Ctrl-H
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlL
	KeyCtrlN
	KeyCtrlQ
	KeyCtrlR
	KeyCtrlS
)

// ModMask is a set of held modifiers.
type ModMask int

const (
	ModNone  ModMask = 0
	ModShift ModMask = 1 << iota
	ModCtrl
	ModAlt
)

// Has reports whether mod is held.
func (m ModMask) Has(mod ModMask) bool {
	return m&mod != 0
}

// Backend is a character-cell display with an event queue.
type Backend interface {
	// Init takes over the terminal. Nothing else may be called before it.
	Init() error
	// Shutdown restores the terminal.
	Shutdown()

	Size() (width, height int)

	// SetCell draws r at x, y in the back buffer. Out-of-range cells are
	// ignored.
	SetCell(x, y int, r rune, style Style)
	Clear()
	// Show makes the back buffer visible.
	Show()
	ShowCursor(x, y int)
	HideCursor()

	// PollEvent blocks until the next event.
	PollEvent() Event
	// PostEvent queues ev for PollEvent without blocking. Safe for
	// concurrent use; events may be dropped when the queue is full.
	PostEvent(ev Event)

	Beep()
}
