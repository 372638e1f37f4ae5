// Package llm provides the narrative generation clients. The engine only
// depends on the Client interface; concrete providers are selected by the
// factory at startup and injected explicitly (no hidden module-level
// singleton).
package llm

import "context"

// Request is a single generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response carries the raw model text plus token usage for budget reporting.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is the minimal interface the brief generator calls.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Model() string
}
