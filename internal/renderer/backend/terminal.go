package backend

import (
	"github.com/gdamore/tcell/v2"
)

// Terminal is the tcell Backend. Drawing and polling belong to one
// goroutine; PostEvent may be called from any.
type Terminal struct {
	screen tcell.Screen
}

// NewTerminal opens the controlling terminal. Init must be called before use.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

func (t *Terminal) Init() error {
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.SetStyle(tcell.StyleDefault)
	return nil
}

func (t *Terminal) Shutdown() { t.screen.Fini() }
func (t *Terminal) Size() (int, int) { return t.screen.Size() }
func (t *Terminal) Clear() { t.screen.Clear() }
func (t *Terminal) Show() { t.screen.Show() }
func (t *Terminal) ShowCursor(x, y int) { t.screen.ShowCursor(x, y) }
func (t *Terminal) HideCursor() { t.screen.HideCursor() }
func (t *Terminal) Beep() { _ = t.screen.Beep() }

func (t *Terminal) SetCell(x, y int, r rune, style Style) {
	t.screen.SetContent(x, y, r, nil, tcell.StyleDefault.Reverse(style.Reverse))
}

func (t *Terminal) PollEvent() Event {
	return convertEvent(t.screen.PollEvent())
}

// PostEvent queues key and interrupt events; other types are dropped, as
// are events that do not fit in tcell's queue.
func (t *Terminal) PostEvent(event Event) {
	var ev tcell.Event
	switch event.Type {
	case EventKey:
		ev = tcell.NewEventKey(convertToTcellKey(event.Key), event.Rune, convertToTcellMod(event.Mod))
	case EventInterrupt:
		ev = tcell.NewEventInterrupt(nil)
	default:
		return
	}
	_ = t.screen.PostEvent(ev)
}

func convertEvent(ev tcell.Event) Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return Event{Type: EventKey, Key: convertKey(e.Key()), Rune: e.Rune(), Mod: convertMod(e.Modifiers())}
	case *tcell.EventResize:
		w, h := e.Size()
		return Event{Type: EventResize, Width: w, Height: h}
	case *tcell.EventInterrupt:
		return Event{Type: EventInterrupt}
	}
	return Event{Type: EventNone}
}

// keyPairs maps tcell keys to ours. When several tcell keys share one of
// ours, the first listed is used for the reverse direction. Legacy input
// delivers Ctrl-H as KeyBackspace; terminals that report modifiers send
// KeyCtrlH.
var keyPairs = []struct {
	tc  tcell.Key
	key Key
}{
	{tcell.KeyRune, KeyRune},
	{tcell.KeyEscape, KeyEscape},
	{tcell.KeyEnter, KeyEnter},
	{tcell.KeyTab, KeyTab},
	{tcell.KeyBackspace2, KeyBackspace},
	{tcell.KeyBackspace, KeyBackspace},
	{tcell.KeyCtrlH, KeyBackspace},
	{tcell.KeyDelete, KeyDelete},
	{tcell.KeyHome, KeyHome},
	{tcell.KeyEnd, KeyEnd},
	{tcell.KeyPgUp, KeyPageUp},
	{tcell.KeyPgDn, KeyPageDown},
	{tcell.KeyUp, KeyUp},
	{tcell.KeyDown, KeyDown},
	{tcell.KeyLeft, KeyLeft},
	{tcell.KeyRight, KeyRight},
	{tcell.KeyCtrlL, KeyCtrlL},
	{tcell.KeyCtrlN, KeyCtrlN},
	{tcell.KeyCtrlQ, KeyCtrlQ},
	{tcell.KeyCtrlR, KeyCtrlR},
	{tcell.KeyCtrlS, KeyCtrlS},
}

var (
	fromTcell = make(map[tcell.Key]Key, len(keyPairs))
	toTcell   = make(map[Key]tcell.Key, len(keyPairs))
)

func init() {
	for _, p := range keyPairs {
		fromTcell[p.tc] = p.key
		if _, ok := toTcell[p.key]; !ok {
			toTcell[p.key] = p.tc
		}
	}
}

func convertKey(k tcell.Key) Key {
	if key, ok := fromTcell[k]; ok {
		return key
	}
	return KeyNone
}

func convertToTcellKey(k Key) tcell.Key {
	if tc, ok := toTcell[k]; ok {
		return tc
	}
	return tcell.KeyNUL
}

var modPairs = [...]struct {
	tc  tcell.ModMask
	mod ModMask
}{
	{tcell.ModShift, ModShift},
	{tcell.ModCtrl, ModCtrl},
	{tcell.ModAlt, ModAlt},
}

func convertMod(m tcell.ModMask) ModMask {
	var out ModMask
	for _, p := range modPairs {
		if m&p.tc != 0 {
			out |= p.mod
		}
	}
	return out
}

func convertToTcellMod(m ModMask) tcell.ModMask {
	var out tcell.ModMask
	for _, p := range modPairs {
		if m.Has(p.mod) {
			out |= p.tc
		}
	}
	return out
}
