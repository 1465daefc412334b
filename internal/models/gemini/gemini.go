// Package gemini provides Gemini-backed chat and embedding models.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

const defaultEmbeddingModel = "text-embedding-004"

// Model implements models.ChatModel and models.Embedder on the Gemini API.
type Model struct {
	client         *genai.Client
	modelName      string
	embeddingModel string
}

// New creates a new Gemini model instance.
func New(ctx context.Context, apiKey, modelName string) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Model{
		client:         client,
		modelName:      modelName,
		embeddingModel: defaultEmbeddingModel,
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.modelName
}

// Generate performs a non-streaming completion.
func (m *Model) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	config := buildGenerateConfig(req)

	resp, err := m.client.Models.GenerateContent(ctx, m.modelName, genai.Text(req.User), config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	return extractResponse(resp)
}

// EmbedQuery computes an embedding for text.
func (m *Model) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.client.Models.EmbedContent(ctx, m.embeddingModel,
		genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings API error: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return resp.Embeddings[0].Values, nil
}
