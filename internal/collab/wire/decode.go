package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dshills/coled/internal/engine/edit"
)

// Reader reads newline-terminated tokens from a stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{r: br}
	}
	return &Reader{r: bufio.NewReader(r)}
}

// ReadToken blocks until a full token is available and returns it without
// its terminator. Every other byte, including a carriage return, belongs to
// the token. An empty line is a valid, empty token. A stream that ends,
// even in the middle of a token, yields ErrEndOfStream.
func (r *Reader) ReadToken() (string, error) {
	s, err := r.r.ReadString(Terminator)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrEndOfStream
		}
		return "", err
	}
	return s[:len(s)-1], nil
}

// ReadOp decodes an operation whose first line has already been read.
func (r *Reader) ReadOp(first string) (edit.Op, error) {
	return ReadOp(first, r.ReadToken)
}

// ReadOp decodes an operation from its first line, pulling further tokens
// from next when needed. The op may arrive on that single line
// ("char 97 3 2") or as the keyword alone followed by one field per line,
// which is how relays that re-split messages forward it.
func ReadOp(first string, next func() (string, error)) (edit.Op, error) {
	fields := Fields(first)
	if len(fields) == 0 {
		return edit.Op{}, fmt.Errorf("%w: empty op", ErrProtocol)
	}
	want := arity(fields[0])
	if want == 0 {
		return edit.Op{}, fmt.Errorf("%w: unknown op %q", ErrProtocol, fields[0])
	}
	if len(fields) == 1 {
		for len(fields) < want {
			tok, err := next()
			if err != nil {
				return edit.Op{}, err
			}
			fields = append(fields, tok)
		}
	}
	return DecodeOp(fields)
}

// Fields splits a message into its space-separated fields. Runs of spaces
// produce no empty fields.
func Fields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' })
}

// IsOp reports whether keyword names an edit operation.
func IsOp(keyword string) bool {
	return arity(keyword) > 0
}

// arity returns the number of fields, keyword included, of an op message.
func arity(keyword string) int {
	switch keyword {
	case CmdChar:
		return 4
	case CmdNewline, CmdDelete:
		return 3
	default:
		return 0
	}
}

// DecodeOp parses the fields of an op message.
func DecodeOp(fields []string) (edit.Op, error) {
	if len(fields) == 0 {
		return edit.Op{}, fmt.Errorf("%w: empty op", ErrProtocol)
	}
	want := arity(fields[0])
	if want == 0 {
		return edit.Op{}, fmt.Errorf("%w: unknown op %q", ErrProtocol, fields[0])
	}
	if len(fields) != want {
		return edit.Op{}, fmt.Errorf("%w: %s takes %d fields, got %d", ErrProtocol, fields[0], want-1, len(fields)-1)
	}

	coords := fields[1:]
	var op edit.Op
	if fields[0] == CmdChar {
		c, err := parseUint(coords[0], 255)
		if err != nil {
			return edit.Op{}, fmt.Errorf("%w: char byte: %v", ErrProtocol, err)
		}
		op.Kind = edit.KindInsertChar
		op.Char = byte(c)
		coords = coords[1:]
	} else if fields[0] == CmdNewline {
		op.Kind = edit.KindInsertNewline
	} else {
		op.Kind = edit.KindDeleteChar
	}

	col, err := parseUint(coords[0], -1)
	if err != nil {
		return edit.Op{}, fmt.Errorf("%w: col: %v", ErrProtocol, err)
	}
	row, err := parseUint(coords[1], -1)
	if err != nil {
		return edit.Op{}, fmt.Errorf("%w: row: %v", ErrProtocol, err)
	}
	op.Col, op.Row = col, row

	if !op.Valid() {
		return edit.Op{}, fmt.Errorf("%w: invalid op %s", ErrProtocol, op)
	}
	return op, nil
}

// ParseCount parses a snapshot row count.
func ParseCount(tok string) (int, error) {
	n, err := parseUint(tok, -1)
	if err != nil {
		return 0, fmt.Errorf("%w: row count: %v", ErrProtocol, err)
	}
	return n, nil
}

// ReadSnapshot reads a row count and then that many rows from next. Nothing
// is returned unless every row arrived.
func ReadSnapshot(next func() (string, error)) ([]string, error) {
	tok, err := next()
	if err != nil {
		return nil, err
	}
	n, err := ParseCount(tok)
	if err != nil {
		return nil, err
	}
	rows := make([]string, 0, min(n, 1<<16))
	for i := 0; i < n; i++ {
		row, err := next()
		if err != nil {
			return nil, fmt.Errorf("row %d of %d: %w", i, n, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseUint parses a non-negative decimal. A max below zero means no upper
// bound beyond int.
func parseUint(s string, max int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || (max >= 0 && n > max) {
		return 0, fmt.Errorf("%d out of range", n)
	}
	return n, nil
}
