// Package models defines the provider-neutral LLM surface and holds one
// subpackage per supported provider.
package models

import "context"

// ChatRequest is a single-turn completion request. System carries the
// persona and any retrieved context; User carries the transcript and the
// new message.
type ChatRequest struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature *float64
}

// ChatResponse is the model's reply plus token accounting when the
// provider reports it.
type ChatResponse struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// ChatModel generates a completion for one request.
type ChatModel interface {
	Name() string
	Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Embedder computes an embedding vector for a piece of text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens int64 = 1024
