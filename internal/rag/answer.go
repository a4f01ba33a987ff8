package rag

import (
	"context"
	"fmt"
	"strings"
)

// Completer produces a text completion for a prompt. Satisfied by the
// genkit-backed completer in the app wiring and by test doubles.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Answer is a generated response with its supporting citations.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"answer"`

	// Citations lists the retrieved chunks the answer was grounded on,
	// most similar first.
	Citations []Citation `json:"citations"`
}

// generate sends the assembled prompt to the model. Any failure maps to
// ErrGenerationUnavailable so callers need not distinguish transport
// errors from model errors.
func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty response", ErrGenerationUnavailable)
	}
	return text, nil
}
