package session

//go:generate mockgen -destination=sessionmock/prompter_mock.go -package=sessionmock . Prompter

import "context"

// Prompt is one question put to the user.
type Prompt struct {
	// Message is shown to the user.
	Message string

	// Answers, when non-empty, lists the only acceptable replies.
	Answers []string

	// MaxLen caps free-text replies; zero means unlimited.
	MaxLen int

	// Secret asks the prompter not to echo the reply.
	Secret bool
}

// Accepts reports whether reply satisfies the prompt's constraints.
func (p Prompt) Accepts(reply string) bool {
	if reply == "" {
		return false
	}
	if p.MaxLen > 0 && len(reply) > p.MaxLen {
		return false
	}
	if len(p.Answers) == 0 {
		return true
	}
	for _, a := range p.Answers {
		if a == reply {
			return true
		}
	}
	return false
}

// Prompter asks the user a question and returns the reply, or ErrCancelled.
type Prompter interface {
	Ask(ctx context.Context, p Prompt) (string, error)
}
