package anthropic

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

// buildMessageParams converts a provider-neutral request to Anthropic
// message params.
func buildMessageParams(modelName string, req models.ChatRequest) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = models.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

// extractResponse joins the text blocks of a message into one reply.
func extractResponse(message *anthropic.Message) (*models.ChatResponse, error) {
	if message == nil {
		return nil, fmt.Errorf("nil message")
	}

	var parts []string
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no text content in response")
	}

	return &models.ChatResponse{
		Text:             strings.Join(parts, "\n"),
		PromptTokens:     message.Usage.InputTokens,
		CompletionTokens: message.Usage.OutputTokens,
	}, nil
}
