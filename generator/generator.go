// Package generator produces raw model completions for compiled prompts.
package generator

import (
	"context"
)

// Request is one completion request.
type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Generator is the completion backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Generator interface, mostly for tests.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
