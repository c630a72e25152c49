package document

import "github.com/dshills/coled/internal/engine/edit"

// Apply executes op against the document and reports whether anything
// changed. Ops that reference positions outside the document, or that are
// malformed, are ignored.
func (d *Document) Apply(op edit.Op) bool {
	if !op.Valid() {
		return false
	}
	switch op.Kind {
	case edit.KindInsertChar:
		return d.applyInsertChar(op.Char, op.Col, op.Row)
	case edit.KindInsertNewline:
		return d.applyInsertNewline(op.Col, op.Row)
	case edit.KindDeleteChar:
		return d.applyDeleteChar(op.Col, op.Row)
	}
	return false
}

// applyInsertChar inserts c at (col, row). Typing on the line just past the
// end of the document creates that line first.
func (d *Document) applyInsertChar(c byte, col, row int) bool {
	n := len(d.lines)
	switch {
	case row > n:
		return false
	case row == n:
		if col != 0 {
			return false
		}
		d.InsertLine(n, nil)
	case col > d.lines[row].Len():
		return false
	}
	return d.InsertCharAt(row, col, c)
}

func (d *Document) applyInsertNewline(col, row int) bool {
	n := len(d.lines)
	if row > n || (row == n && col != 0) {
		return false
	}
	if col == 0 {
		return d.InsertLine(row, nil)
	}
	return d.SplitLine(row, col)
}

// applyDeleteChar removes the byte left of (col, row); at column 0 the row
// is joined onto the previous one.
func (d *Document) applyDeleteChar(col, row int) bool {
	if row >= len(d.lines) || (col == 0 && row == 0) {
		return false
	}
	if col > d.lines[row].Len() {
		return false
	}
	if col > 0 {
		return d.DeleteCharAt(row, col-1)
	}
	return d.MergeIntoPrevious(row)
}
