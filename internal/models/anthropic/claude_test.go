package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patelhetu-177/AvatarAI/internal/models"
)

func TestNewClaudeModelRequiresAPIKey(t *testing.T) {
	_, err := NewClaudeModel("", "claude-3-5-haiku-latest")
	assert.Error(t, err)
}

func TestNewClaudeModelDefaultsModelName(t *testing.T) {
	m, err := NewClaudeModel("key", "")
	require.NoError(t, err)
	assert.NotEmpty(t, m.Name())
}

func TestBuildMessageParams(t *testing.T) {
	temp := 0.9
	params := buildMessageParams("claude-3-5-haiku-latest", models.ChatRequest{
		System:      "You are Albert.",
		User:        "Hello",
		MaxTokens:   512,
		Temperature: &temp,
	})

	assert.Equal(t, anthropic.Model("claude-3-5-haiku-latest"), params.Model)
	assert.Equal(t, int64(512), params.MaxTokens)
	assert.Equal(t, 0.9, params.Temperature.Value)
	require.Len(t, params.System, 1)
	assert.Equal(t, "You are Albert.", params.System[0].Text)
	require.Len(t, params.Messages, 1)
}

func TestBuildMessageParamsDefaults(t *testing.T) {
	params := buildMessageParams("claude-3-5-haiku-latest", models.ChatRequest{User: "Hello"})

	assert.Equal(t, models.DefaultMaxTokens, params.MaxTokens)
	assert.Empty(t, params.System)
}

func TestExtractResponseRejectsEmpty(t *testing.T) {
	_, err := extractResponse(nil)
	assert.Error(t, err)

	_, err = extractResponse(&anthropic.Message{})
	assert.Error(t, err)
}
