package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/docchat/docchat/internal/config"
)

// Completer generates answers through Genkit. It satisfies the
// pipeline's prompt -> text contract.
type Completer struct {
	g         *genkit.Genkit
	modelName string
}

// NewCompleter creates a Genkit-backed completer. modelName is qualified
// with the provider prefix Genkit expects unless it already carries one.
func NewCompleter(g *genkit.Genkit, provider, modelName string) *Completer {
	return &Completer{
		g:         g,
		modelName: qualifyModelName(provider, modelName),
	}
}

// Complete sends one generation request and returns the response text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithPrompt(prompt),
	}
	if c.modelName != "" {
		opts = append(opts, ai.WithModelName(c.modelName))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	return resp.Text(), nil
}

// qualifyModelName prefixes the model name with the Genkit plugin
// namespace for the provider.
func qualifyModelName(provider, modelName string) string {
	if modelName == "" || strings.Contains(modelName, "/") {
		return modelName
	}

	switch provider {
	case config.ProviderOllama:
		return "ollama/" + modelName
	case config.ProviderOpenAI:
		return "openai/" + modelName
	default: // gemini
		return "googleai/" + modelName
	}
}
