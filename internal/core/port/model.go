package port

import "context"

// Model produces a completion for a rendered prompt. Implementations decide
// where completions come from; the harness never calls a network model itself.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
