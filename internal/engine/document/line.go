package document

import "bytes"

// DefaultTabStop is the tab width used when rendering lines.
const DefaultTabStop = 8

// Line is one row of the document.
type Line struct {
	chars  []byte
	render []byte
}

func newLine(s []byte, tabStop int) *Line {
	l := &Line{chars: append([]byte(nil), s...)}
	l.update(tabStop)
	return l
}

// update regenerates the render form from the content.
func (l *Line) update(tabStop int) {
	tabs := bytes.Count(l.chars, []byte{'\t'})
	render := make([]byte, 0, len(l.chars)+tabs*(tabStop-1))
	for _, c := range l.chars {
		if c == '\t' {
			render = append(render, ' ')
			for len(render)%tabStop != 0 {
				render = append(render, ' ')
			}
			continue
		}
		render = append(render, c)
	}
	l.render = render
}

// Len returns the number of content bytes.
func (l *Line) Len() int {
	return len(l.chars)
}

// String returns the content.
func (l *Line) String() string {
	return string(l.chars)
}

// Render returns the display form.
func (l *Line) Render() string {
	return string(l.render)
}

// validContent reports whether s may be stored as line content.
func validContent(s []byte) bool {
	return bytes.IndexByte(s, '\n') < 0 && bytes.IndexByte(s, 0) < 0
}

// sanitize drops bytes that may not appear in a line.
func sanitize(s []byte) []byte {
	if validContent(s) {
		return s
	}
	out := make([]byte, 0, len(s))
	for _, c := range s {
		if c != '\n' && c != 0 {
			out = append(out, c)
		}
	}
	return out
}
