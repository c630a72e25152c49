package app

import (
	"fmt"

	"github.com/dshills/coled/internal/engine/document"
	"github.com/dshills/coled/internal/renderer/backend"
)

var reverse = backend.Style{Reverse: true}

// refresh redraws the whole screen from the current document.
func (e *Editor) refresh() {
	e.screen.HideCursor()
	e.screen.Clear()
	e.collab.View(func(d *document.Document) {
		e.clamp(d)
		e.scroll(d)
		e.drawRows(d)
		e.drawStatusBar(d)
	})
	e.drawMessageBar()
	e.screen.ShowCursor(e.rx-e.coloff, e.cy-e.rowoff)
	e.screen.Show()
}

// clamp keeps the cursor inside the document, which remote edits may have
// shrunk.
func (e *Editor) clamp(d *document.Document) {
	if n := d.NumLines(); e.cy > n {
		e.cy = n
	}
	if e.cy < 0 {
		e.cy = 0
	}
	if l := max(d.LineLen(e.cy), 0); e.cx > l {
		e.cx = l
	}
	if e.cx < 0 {
		e.cx = 0
	}
}

func (e *Editor) scroll(d *document.Document) {
	e.rx = 0
	if e.cy < d.NumLines() {
		e.rx = d.RowCxToRx(e.cy, e.cx)
	}

	if e.cy < e.rowoff {
		e.rowoff = e.cy
	}
	if e.cy >= e.rowoff+e.screenRows {
		e.rowoff = e.cy - e.screenRows + 1
	}
	if e.rx < e.coloff {
		e.coloff = e.rx
	}
	if e.rx >= e.coloff+e.screenCols {
		e.coloff = e.rx - e.screenCols + 1
	}
}

func (e *Editor) drawRows(d *document.Document) {
	n := d.NumLines()
	for y := 0; y < e.screenRows; y++ {
		filerow := y + e.rowoff
		if filerow >= n {
			if n == 0 && y == e.screenRows/3 {
				e.drawWelcome(y)
			} else {
				e.screen.SetCell(0, y, '~', backend.StyleDefault)
			}
			continue
		}

		render := d.Line(filerow).Render()
		if e.coloff >= len(render) {
			continue
		}
		render = render[e.coloff:]
		if len(render) > e.screenCols {
			render = render[:e.screenCols]
		}
		e.putBytes(0, y, render, backend.StyleDefault)
	}
}

func (e *Editor) drawWelcome(y int) {
	welcome := fmt.Sprintf("COLED editor -- version %s", e.version)
	if len(welcome) > e.screenCols {
		welcome = welcome[:e.screenCols]
	}
	x := 0
	if padding := (e.screenCols - len(welcome)) / 2; padding > 0 {
		e.screen.SetCell(0, y, '~', backend.StyleDefault)
		x = padding
	}
	e.putBytes(x, y, welcome, backend.StyleDefault)
}

func (e *Editor) drawStatusBar(d *document.Document) {
	y := e.screenRows
	name := e.filename
	if name == "" {
		name = "[No name]"
	}
	left := fmt.Sprintf("%.20s - %d lines", name, d.NumLines())
	if d.Dirty() {
		left += " (modified)"
	}
	right := fmt.Sprintf("%d:%d", e.cy+1, e.rx+1)

	if len(left) > e.screenCols {
		left = left[:e.screenCols]
	}
	for x := 0; x < e.screenCols; x++ {
		e.screen.SetCell(x, y, ' ', reverse)
	}
	e.putBytes(0, y, left, reverse)
	if len(left)+len(right) < e.screenCols {
		e.putBytes(e.screenCols-len(right), y, right, reverse)
	}
}

func (e *Editor) drawMessageBar() {
	msg := e.prompt
	if msg == "" {
		msg = e.status()
	}
	if len(msg) > e.screenCols {
		msg = msg[:e.screenCols]
	}
	e.putBytes(0, e.screenRows+1, msg, backend.StyleDefault)
}

// putBytes draws s one byte per cell; document content is single-byte.
func (e *Editor) putBytes(x, y int, s string, style backend.Style) {
	for i := 0; i < len(s); i++ {
		e.screen.SetCell(x+i, y, rune(s[i]), style)
	}
}
