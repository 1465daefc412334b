package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/Patelhetu-177/AvatarAI/pkg/config"
)

func loadDefaults(t *testing.T) *AppConfig {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	var cfg AppConfig
	require.NoError(t, pkgconfig.LoadFromEnv(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := loadDefaults(t)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "avatarai", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 30, cfg.Memory.ReadWindow)
	assert.Equal(t, 30, cfg.Memory.TrimRetention)
	assert.Equal(t, 3, cfg.Memory.RetrievalK)
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.False(t, cfg.RateLimit.FailClosed)
}

func TestValidateRequiresRedisURL(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Redis.URL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestValidateRequiresProviderKey(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Gemini.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidateClaudeNeedsEmbeddingProvider(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.LLM.Provider = "claude"
	cfg.Anthropic.APIKey = "claude-key"
	cfg.Gemini.APIKey = ""
	cfg.OpenAI.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embeddings")

	cfg.OpenAI.APIKey = "openai-key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.LLM.Provider = "llama"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm provider")
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Port = 0
	cfg.Logging.Level = "verbose"
	cfg.Memory.ReadWindow = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "read_window")
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := loadDefaults(t)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Environment = "Production"
	assert.True(t, cfg.IsProduction())
}
