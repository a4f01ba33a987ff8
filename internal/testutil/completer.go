package testutil

import (
	"context"
	"sync"
)

// Completer is a scripted completion service for tests. It records every
// prompt it receives and returns a fixed response (or a fixed error,
// simulating an unavailable service).
//
// Thread-safe for concurrent use.
type Completer struct {
	Response string
	Err      error

	mu      sync.Mutex
	prompts []string
}

// Complete implements the pipeline's prompt -> text contract.
func (c *Completer) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}

// Prompts returns a copy of all recorded prompts, in call order.
func (c *Completer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]string, len(c.prompts))
	copy(cp, c.prompts)
	return cp
}

// LastPrompt returns the most recent prompt, or "" if none were made.
func (c *Completer) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}
