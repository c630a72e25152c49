package app

import (
	"context"
	"strings"

	"github.com/dshills/coled/internal/collab/session"
	"github.com/dshills/coled/internal/renderer/backend"
)

var _ session.Prompter = (*Editor)(nil)

// Ask runs a modal prompt on the message bar and returns the typed reply.
// ESC cancels with session.ErrCancelled; Enter accepts a non-empty reply.
// Remote changes keep being drawn while the prompt is open.
func (e *Editor) Ask(ctx context.Context, p session.Prompt) (string, error) {
	var buf []byte
	defer func() { e.prompt = "" }()
	for {
		e.prompt = promptLine(p, buf)
		e.refresh()
		if err := ctx.Err(); err != nil {
			return "", err
		}

		ev := e.screen.PollEvent()
		switch ev.Type {
		case backend.EventResize:
			e.resize(ev.Width, ev.Height)
			continue
		case backend.EventKey:
		default:
			continue
		}

		switch ev.Key {
		case backend.KeyEscape:
			e.setStatus("Leaving...")
			return "", session.ErrCancelled
		case backend.KeyEnter:
			if len(buf) > 0 {
				return string(buf), nil
			}
		case backend.KeyBackspace, backend.KeyDelete:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
			}
		case backend.KeyRune:
			if ev.Rune < ' ' || ev.Rune > '~' || (p.MaxLen > 0 && len(buf) >= p.MaxLen) {
				e.screen.Beep()
				continue
			}
			buf = append(buf, byte(ev.Rune))
		}
	}
}

// promptLine places the reply after the first ": " of the message, so
// "Enter id: (ESC to cancel)" reads "Enter id: abc (ESC to cancel)".
func promptLine(p session.Prompt, buf []byte) string {
	reply := string(buf)
	if p.Secret {
		reply = strings.Repeat("*", len(buf))
	}
	before, after, found := strings.Cut(p.Message, ": ")
	if !found {
		return p.Message + " " + reply
	}
	if reply == "" {
		return before + ": " + after
	}
	return before + ": " + reply + " " + after
}
