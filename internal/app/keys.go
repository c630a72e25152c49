package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/dshills/coled/internal/collab"
	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/collab/transport"
	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/renderer/backend"
)

// handleKey runs the command bound to ev. It returns ErrQuit when the
// editor should exit.
func (e *Editor) handleKey(ctx context.Context, ev backend.Event) error {
	switch ev.Key {
	case backend.KeyEnter:
		e.insertNewline()

	case backend.KeyCtrlQ:
		if e.quitLeft > 0 && e.dirty() {
			e.setStatus(fmt.Sprintf("WARNING!!! File has unsaved changes. Press Ctrl-Q %d more times to quit.", e.quitLeft))
			e.quitLeft--
			return nil
		}
		return ErrQuit

	case backend.KeyCtrlS:
		e.save(ctx)

	case backend.KeyCtrlN:
		e.network(ctx)

	case backend.KeyCtrlR:
		e.resync()

	case backend.KeyHome:
		e.cx = 0

	case backend.KeyEnd:
		e.collab.View(func(d *document.Document) {
			if l := d.LineLen(e.cy); l >= 0 {
				e.cx = l
			}
		})

	case backend.KeyBackspace:
		e.deleteChar()

	case backend.KeyDelete:
		e.moveCursor(backend.KeyRight)
		e.deleteChar()

	case backend.KeyPageUp, backend.KeyPageDown:
		e.page(ev.Key)

	case backend.KeyUp, backend.KeyDown, backend.KeyLeft, backend.KeyRight:
		e.moveCursor(ev.Key)

	case backend.KeyCtrlL, backend.KeyEscape:

	case backend.KeyTab:
		e.insertChar('\t')

	case backend.KeyRune:
		if ev.Rune >= ' ' && ev.Rune <= '~' {
			e.insertChar(byte(ev.Rune))
		} else {
			e.screen.Beep()
		}
	}

	e.quitLeft = e.quitTimes
	return nil
}

func (e *Editor) moveCursor(key backend.Key) {
	e.collab.View(func(d *document.Document) {
		n := d.NumLines()
		rowLen := d.LineLen(e.cy)
		switch key {
		case backend.KeyLeft:
			if e.cx != 0 {
				e.cx--
			} else if e.cy > 0 {
				e.cy--
				e.cx = d.LineLen(e.cy)
			}
		case backend.KeyRight:
			if rowLen >= 0 && e.cx < rowLen {
				e.cx++
			} else if rowLen >= 0 && e.cx == rowLen {
				e.cy++
				e.cx = 0
			}
		case backend.KeyUp:
			if e.cy != 0 {
				e.cy--
			}
		case backend.KeyDown:
			if e.cy < n {
				e.cy++
			}
		}
		e.clamp(d)
	})
}

func (e *Editor) page(key backend.Key) {
	if key == backend.KeyPageUp {
		e.cy = e.rowoff
	} else {
		e.collab.View(func(d *document.Document) {
			e.cy = min(e.rowoff+e.screenRows-1, d.NumLines())
		})
	}
	dir := backend.KeyDown
	if key == backend.KeyPageUp {
		dir = backend.KeyUp
	}
	for range e.screenRows {
		e.moveCursor(dir)
	}
}

func (e *Editor) insertChar(c byte) {
	applied, err := e.collab.InsertChar(c, e.cx, e.cy)
	e.reportSend(err)
	if applied {
		e.cx++
	}
}

func (e *Editor) insertNewline() {
	applied, err := e.collab.InsertNewline(e.cx, e.cy)
	e.reportSend(err)
	if applied {
		e.cy++
		e.cx = 0
	}
}

func (e *Editor) deleteChar() {
	prevLen := 0
	e.collab.View(func(d *document.Document) {
		prevLen = max(d.LineLen(e.cy-1), 0)
	})
	applied, err := e.collab.DeleteChar(e.cx, e.cy)
	e.reportSend(err)
	if !applied {
		return
	}
	if e.cx > 0 {
		e.cx--
		return
	}
	e.cx = prevLen
	e.cy--
}

// reportSend surfaces a failed transmission. The edit itself is already
// applied locally; the listener reconnects.
func (e *Editor) reportSend(err error) {
	if err == nil {
		return
	}
	e.logger.Warn("send failed", zap.Error(err))
	e.setStatus("Send error")
}

func (e *Editor) resync() {
	err := e.collab.Resync()
	switch {
	case err == nil:
		e.setStatus("Requested copy from host")
	case errors.Is(err, collab.ErrNoSession):
		e.setStatus("Not in a session")
	case errors.Is(err, collab.ErrHostCopy):
		e.setStatus("You are the host")
	default:
		e.reportSend(err)
	}
}

// save writes the document, asking for a filename when there is none.
func (e *Editor) save(ctx context.Context) {
	if e.filename == "" {
		name, err := e.Ask(ctx, session.Prompt{Message: "Save as: (ESC to cancel)"})
		if err != nil {
			e.setStatus("Save aborted")
			return
		}
		e.filename = name
	}

	n, err := e.saveFile()
	if err != nil {
		e.logger.Error("save failed", zap.Error(err))
		e.setStatus(fmt.Sprintf("Can't save! I/O error: %v", ioCause(err)))
		return
	}
	e.setStatus(fmt.Sprintf("%d bytes written to disk", n))
}

func (e *Editor) saveFile() (int, error) {
	if e.filename == "" {
		return 0, &OperationError{Op: "save", Err: ErrNoFilename}
	}
	var n int
	err := e.collab.Update(func(d *document.Document) error {
		var err error
		n, err = d.SaveFile(e.filename)
		return err
	})
	if err != nil {
		return 0, &OperationError{Op: "save", Target: e.filename, Err: err}
	}
	return n, nil
}

// ioCause strips path context from a file error.
func ioCause(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return perr.Err
	}
	return err
}

// network runs the Ctrl-N menu: optionally save, then create or join a
// session.
func (e *Editor) network(ctx context.Context) {
	answer, err := e.choose(ctx, "Save file? y/n: (ESC to cancel)", "y", "n")
	if err != nil {
		return
	}
	if answer == "y" {
		e.save(ctx)
	}

	answer, err = e.choose(ctx, "Create session or join? c/j: (ESC to cancel)", "c", "j")
	if err != nil {
		return
	}

	var s *session.Session
	op := "create"
	if answer == "c" {
		s, err = e.collab.Create(ctx)
	} else {
		op = "join"
		s, err = e.collab.Join(ctx)
	}
	if err != nil {
		e.reportNetwork(&OperationError{Op: op, Err: err})
		return
	}

	if op == "create" {
		e.setStatus(fmt.Sprintf("Session created, your id is %s", s.ID()))
	} else {
		e.setStatus("Successful join")
	}
	// The snapshot may have moved everything under the cursor.
	e.cx, e.cy = 0, 0
}

func (e *Editor) reportNetwork(err error) {
	var terr *transport.Error
	switch {
	case errors.Is(err, session.ErrCancelled), errors.Is(err, context.Canceled):
		e.setStatus("Leaving...")
		return
	case errors.As(err, &terr) && terr.Op == "connect":
		e.setStatus("Error with connecting to server")
	case errors.As(err, &terr):
		e.setStatus(fmt.Sprintf("Network error: %s failed", terr.Op))
	default:
		e.setStatus(fmt.Sprintf("Network error: %v", err))
	}
	e.logger.Warn("network command failed", zap.Error(err))
}

// choose asks until the reply is one of answers.
func (e *Editor) choose(ctx context.Context, message string, answers ...string) (string, error) {
	p := session.Prompt{Message: message, Answers: answers, MaxLen: 1}
	for {
		reply, err := e.Ask(ctx, p)
		if err != nil {
			return "", err
		}
		if p.Accepts(reply) {
			return reply, nil
		}
		p.Message = "Invalid message. " + message
	}
}
