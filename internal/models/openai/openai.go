// Package openai provides OpenAI-backed chat and embedding models.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

// Model implements models.ChatModel and models.Embedder for OpenAI.
type Model struct {
	client         *openai.Client
	modelName      string
	embeddingModel openai.EmbeddingModel
}

// New creates a new OpenAI model instance.
func New(apiKey, modelName string) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Model{
		client:         &client,
		modelName:      modelName,
		embeddingModel: openai.EmbeddingModelTextEmbedding3Small,
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.modelName
}

// Generate performs a non-streaming chat completion.
func (m *Model) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	params := buildChatParams(m.modelName, req)

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	return extractResponse(completion)
}

// EmbedQuery computes an embedding for text.
func (m *Model) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: m.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings API error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}
