// Package anthropic provides a Claude-backed chat model.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

// ClaudeModel implements models.ChatModel for Anthropic Claude models.
// Claude has no embeddings endpoint, so retrieval pairs it with another
// provider's embedder.
type ClaudeModel struct {
	client    anthropic.Client
	modelName string
}

// NewClaudeModel creates a new Claude model instance.
func NewClaudeModel(apiKey, modelName string, opts ...option.RequestOption) (*ClaudeModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &ClaudeModel{
		client:    client,
		modelName: modelName,
	}, nil
}

// Name returns the name of the model.
func (c *ClaudeModel) Name() string {
	return c.modelName
}

// Generate performs a non-streaming completion.
func (c *ClaudeModel) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	params := buildMessageParams(c.modelName, req)

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	return extractResponse(resp)
}
