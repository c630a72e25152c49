// Package edit defines the atomic edit operations exchanged between peers.
package edit

import "fmt"

// Kind identifies the variant of an Op.
type Kind uint8

const (
	// KindInvalid is the zero Kind; no valid Op carries it.
	KindInvalid Kind = iota
	// KindInsertChar inserts one byte at (Col, Row).
	KindInsertChar
	// KindInsertNewline splits Row at Col.
	KindInsertNewline
	// KindDeleteChar deletes the byte before (Col, Row), joining lines at column 0.
	KindDeleteChar
)

// String returns the wire keyword of the kind.
func (k Kind) String() string {
	switch k {
	case KindInsertChar:
		return "char"
	case KindInsertNewline:
		return "newline"
	case KindDeleteChar:
		return "delete"
	default:
		return "invalid"
	}
}

// Op is one edit expressed in absolute document coordinates. Coordinates
// are not relative to earlier operations, so ops only make sense when
// applied in the order they were produced.
type Op struct {
	Kind Kind
	Char byte // only meaningful for KindInsertChar
	Col  int
	Row  int
}

// InsertChar returns an op inserting c at (col, row).
func InsertChar(c byte, col, row int) Op {
	return Op{Kind: KindInsertChar, Char: c, Col: col, Row: row}
}

// InsertNewline returns an op splitting row at col.
func InsertNewline(col, row int) Op {
	return Op{Kind: KindInsertNewline, Col: col, Row: row}
}

// DeleteChar returns an op deleting the byte before (col, row).
func DeleteChar(col, row int) Op {
	return Op{Kind: KindDeleteChar, Col: col, Row: row}
}

// ValidChar reports whether c may appear in a line.
func ValidChar(c byte) bool {
	return c != '\n' && c != 0
}

// Valid reports whether the op is well formed. It says nothing about
// whether the coordinates exist in a particular document.
func (o Op) Valid() bool {
	if o.Col < 0 || o.Row < 0 {
		return false
	}
	switch o.Kind {
	case KindInsertChar:
		return ValidChar(o.Char)
	case KindInsertNewline, KindDeleteChar:
		return o.Char == 0
	default:
		return false
	}
}

// String returns a human-readable representation of the op.
func (o Op) String() string {
	if o.Kind == KindInsertChar {
		return fmt.Sprintf("%s(%q @ %d:%d)", o.Kind, o.Char, o.Row, o.Col)
	}
	return fmt.Sprintf("%s(@ %d:%d)", o.Kind, o.Row, o.Col)
}
