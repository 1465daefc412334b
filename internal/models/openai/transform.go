package openai

import (
	"fmt"

	"github.com/openai/openai-go"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

// buildChatParams converts a provider-neutral request to OpenAI chat
// completion params.
func buildChatParams(modelName string, req models.ChatRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = models.DefaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:     modelName,
		MaxTokens: openai.Int(maxTokens),
		Messages:  messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

// extractResponse pulls the first choice and usage out of a completion.
func extractResponse(completion *openai.ChatCompletion) (*models.ChatResponse, error) {
	if completion == nil {
		return nil, fmt.Errorf("nil completion")
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &models.ChatResponse{
		Text:             completion.Choices[0].Message.Content,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}
