package gemini

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

// buildGenerateConfig converts a provider-neutral request to a Gemini
// generation config.
func buildGenerateConfig(req models.ChatRequest) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = models.DefaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	return config
}

// extractResponse pulls the reply text and usage out of a response.
func extractResponse(resp *genai.GenerateContentResponse) (*models.ChatResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	out := &models.ChatResponse{Text: text}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
