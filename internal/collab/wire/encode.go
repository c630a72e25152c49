package wire

import (
	"strconv"

	"github.com/dshills/coled/internal/engine/edit"
)

// Command and reply keywords.
const (
	CmdCreate   = "create"
	CmdJoin     = "join"
	CmdRequest  = "request"
	CmdResponse = "response"
	CmdChar     = "char"
	CmdNewline  = "newline"
	CmdDelete   = "delete"
	CmdHost     = "host"

	ReplySuccess     = "success"
	ReplyInvalidID   = "invalid id"
	ReplyInvalidPass = "invalid pass"
	ReplyUnknown     = "Unknown command"
)

// Terminator ends every token.
const Terminator = '\n'

func line(fields ...string) []byte {
	n := len(fields)
	for _, f := range fields {
		n += len(f)
	}
	b := make([]byte, 0, n)
	for i, f := range fields {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, f...)
	}
	return append(b, Terminator)
}

// Create encodes a session creation request.
func Create(password string) []byte {
	return line(CmdCreate, password)
}

// Join encodes a session join request.
func Join(id, password string) []byte {
	return line(CmdJoin, id, password)
}

// Request encodes a snapshot request.
func Request() []byte {
	return line(CmdRequest)
}

// Response encodes the header preceding a requested snapshot.
func Response() []byte {
	return line(CmdResponse)
}

// Host encodes the notice sent to a peer promoted to host.
func Host() []byte {
	return line(CmdHost)
}

// Token encodes a single free-form token such as a session id or a reply.
func Token(s string) []byte {
	return line(s)
}

// Count encodes a row count.
func Count(n int) []byte {
	return line(strconv.Itoa(n))
}

// Row encodes one snapshot row.
func Row(content string) []byte {
	return line(content)
}

// Snapshot encodes a full snapshot as a single buffer: an optional response
// header, the row count, then every row.
func Snapshot(rows []string, withHeader bool) []byte {
	size := 16
	for _, r := range rows {
		size += len(r) + 1
	}
	b := make([]byte, 0, size)
	if withHeader {
		b = append(b, Response()...)
	}
	b = append(b, Count(len(rows))...)
	for _, r := range rows {
		b = append(b, Row(r)...)
	}
	return b
}

// EncodeOp encodes an edit operation.
func EncodeOp(op edit.Op) []byte {
	col, row := strconv.Itoa(op.Col), strconv.Itoa(op.Row)
	switch op.Kind {
	case edit.KindInsertChar:
		return line(CmdChar, strconv.Itoa(int(op.Char)), col, row)
	case edit.KindInsertNewline:
		return line(CmdNewline, col, row)
	case edit.KindDeleteChar:
		return line(CmdDelete, col, row)
	default:
		return nil
	}
}
