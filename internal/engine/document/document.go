package document

import (
	"github.com/dshills/coled/internal/engine/edit"
)

// Document is an ordered sequence of lines.
type Document struct {
	lines   []*Line
	tabStop int
	dirty   int
}

// Option configures a Document.
type Option func(*Document)

// WithTabStop sets the tab width used for render forms.
func WithTabStop(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.tabStop = n
		}
	}
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{tabStop: DefaultTabStop}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFromLines creates a document holding rows. Rows containing a newline or
// NUL byte are skipped. The result is not marked dirty.
func NewFromLines(rows []string, opts ...Option) *Document {
	d := New(opts...)
	for _, r := range rows {
		d.InsertLine(d.NumLines(), []byte(r))
	}
	d.dirty = 0
	return d
}

// NumLines returns the number of lines.
func (d *Document) NumLines() int {
	return len(d.lines)
}

// Line returns the line at row, or nil if row is out of range.
func (d *Document) Line(row int) *Line {
	if row < 0 || row >= len(d.lines) {
		return nil
	}
	return d.lines[row]
}

// LineLen returns the length of row, or -1 if row is out of range.
func (d *Document) LineLen(row int) int {
	if l := d.Line(row); l != nil {
		return l.Len()
	}
	return -1
}

// Rows returns a copy of every line's content.
func (d *Document) Rows() []string {
	rows := make([]string, len(d.lines))
	for i, l := range d.lines {
		rows[i] = l.String()
	}
	return rows
}

// TabStop returns the tab width.
func (d *Document) TabStop() int {
	return d.tabStop
}

// Dirty reports whether the document changed since the last MarkClean.
func (d *Document) Dirty() bool {
	return d.dirty > 0
}

// MarkClean resets the modification counter.
func (d *Document) MarkClean() {
	d.dirty = 0
}

// RowCxToRx converts a content column on row into its render column.
func (d *Document) RowCxToRx(row, cx int) int {
	l := d.Line(row)
	if l == nil {
		return 0
	}
	rx := 0
	for j := 0; j < cx && j < len(l.chars); j++ {
		if l.chars[j] == '\t' {
			rx += (d.tabStop - 1) - (rx % d.tabStop)
		}
		rx++
	}
	return rx
}

// InsertLine inserts s as a new line at index at (0 <= at <= NumLines).
func (d *Document) InsertLine(at int, s []byte) bool {
	if at < 0 || at > len(d.lines) || !validContent(s) {
		return false
	}
	d.lines = append(d.lines, nil)
	copy(d.lines[at+1:], d.lines[at:])
	d.lines[at] = newLine(s, d.tabStop)
	d.dirty++
	return true
}

// DeleteLine removes the line at index at.
func (d *Document) DeleteLine(at int) bool {
	if at < 0 || at >= len(d.lines) {
		return false
	}
	copy(d.lines[at:], d.lines[at+1:])
	d.lines[len(d.lines)-1] = nil
	d.lines = d.lines[:len(d.lines)-1]
	d.dirty++
	return true
}

// InsertCharAt inserts c into row before column col (0 <= col <= len).
func (d *Document) InsertCharAt(row, col int, c byte) bool {
	l := d.Line(row)
	if l == nil || col < 0 || col > len(l.chars) || !edit.ValidChar(c) {
		return false
	}
	l.chars = append(l.chars, 0)
	copy(l.chars[col+1:], l.chars[col:])
	l.chars[col] = c
	l.update(d.tabStop)
	d.dirty++
	return true
}

// DeleteCharAt removes the byte at column col of row (0 <= col < len).
func (d *Document) DeleteCharAt(row, col int) bool {
	l := d.Line(row)
	if l == nil || col < 0 || col >= len(l.chars) {
		return false
	}
	l.chars = append(l.chars[:col], l.chars[col+1:]...)
	l.update(d.tabStop)
	d.dirty++
	return true
}

// AppendString appends s to the end of row.
func (d *Document) AppendString(row int, s []byte) bool {
	l := d.Line(row)
	if l == nil || !validContent(s) {
		return false
	}
	l.chars = append(l.chars, s...)
	l.update(d.tabStop)
	d.dirty++
	return true
}

// SplitLine breaks row at col, moving the tail to a new line after it.
// Splitting at column 0 inserts an empty line before row.
func (d *Document) SplitLine(row, col int) bool {
	l := d.Line(row)
	if l == nil || col < 0 || col > len(l.chars) {
		return false
	}
	if col == 0 {
		return d.InsertLine(row, nil)
	}
	tail := append([]byte(nil), l.chars[col:]...)
	d.InsertLine(row+1, tail)
	l.chars = l.chars[:col:col]
	l.update(d.tabStop)
	return true
}

// MergeIntoPrevious appends row to row-1 and deletes row.
func (d *Document) MergeIntoPrevious(row int) bool {
	if row < 1 || row >= len(d.lines) {
		return false
	}
	d.AppendString(row-1, d.lines[row].chars)
	return d.DeleteLine(row)
}

// Replace overwrites the document with rows: row i is replaced when it
// exists and appended otherwise, then every line past len(rows) is removed.
// Local content not present in rows is discarded.
func (d *Document) Replace(rows []string) {
	old := len(d.lines)
	for i, r := range rows {
		content := sanitize([]byte(r))
		if i < old {
			d.lines[i] = newLine(content, d.tabStop)
			d.dirty++
			continue
		}
		d.InsertLine(len(d.lines), content)
	}
	for i := len(d.lines) - 1; i >= len(rows); i-- {
		d.DeleteLine(i)
	}
}
