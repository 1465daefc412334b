package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"avatarai"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// Server configuration
	Port           int           `env:"PORT" yaml:"port" default:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" yaml:"request_timeout" default:"30s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`

	// LLM provider selection
	LLM LLMConfig `yaml:"llm,inline"`

	// Provider credentials
	Gemini    GeminiConfig    `yaml:"gemini,inline"`
	OpenAI    OpenAIConfig    `yaml:"openai,inline"`
	Anthropic AnthropicConfig `yaml:"anthropic,inline"`

	// Conversation memory configuration
	Memory MemoryConfig `yaml:"memory,inline"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit,inline"`

	// Vector index configuration
	Vector VectorConfig `yaml:"vector,inline"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis,inline"`

	// Database configuration (optional, in-memory store when unset)
	Database DatabaseConfig `yaml:"database,inline"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,inline"`

	// Monitoring configuration
	Monitoring MonitoringConfig `yaml:"monitoring,inline"`

	// Security configuration
	Security SecurityConfig `yaml:"security,inline"`
}

// LLMConfig selects the chat model provider
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" yaml:"provider" default:"gemini"`
}

// GeminiConfig holds Gemini-specific configuration
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY" yaml:"api_key"`
	Model  string `env:"GEMINI_MODEL" yaml:"model" default:"gemini-2.5-flash"`
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey string `env:"OPENAI_API_KEY" yaml:"api_key"`
	Model  string `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4o-mini"`
}

// AnthropicConfig holds Anthropic-specific configuration
type AnthropicConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model  string `env:"CLAUDE_MODEL" yaml:"model" default:"claude-3-5-haiku-latest"`
}

// MemoryConfig holds conversation history tuning
type MemoryConfig struct {
	ReadWindow    int           `env:"MEMORY_READ_WINDOW" yaml:"read_window" default:"30"`
	TrimRetention int           `env:"MEMORY_TRIM_RETENTION" yaml:"trim_retention" default:"30"`
	EmbeddingTTL  time.Duration `env:"MEMORY_EMBEDDING_TTL" yaml:"embedding_ttl" default:"1h"`
	RetrievalK    int           `env:"MEMORY_RETRIEVAL_K" yaml:"retrieval_k" default:"3"`
}

// RateLimitConfig holds admission control tuning
type RateLimitConfig struct {
	Limit      int           `env:"RATE_LIMIT_REQUESTS" yaml:"limit" default:"5"`
	Window     time.Duration `env:"RATE_LIMIT_WINDOW" yaml:"window" default:"10s"`
	CacheTTL   time.Duration `env:"RATE_LIMIT_CACHE_TTL" yaml:"cache_ttl" default:"5s"`
	FailClosed bool          `env:"RATE_LIMIT_FAIL_CLOSED" yaml:"fail_closed" default:"false"`
}

// VectorConfig holds vector index configuration
type VectorConfig struct {
	// PersistDir stores the index on disk; empty keeps it in memory.
	PersistDir string `env:"VECTOR_PERSIST_DIR" yaml:"persist_dir"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string        `env:"REDIS_URL" yaml:"url" required:"true"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database int           `env:"REDIS_DATABASE" yaml:"database" default:"0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT" yaml:"timeout" default:"5s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" yaml:"url"`
	MaxConnections  int           `env:"DATABASE_MAX_CONNECTIONS" yaml:"max_connections" default:"25"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" yaml:"conn_max_lifetime" default:"5m"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" yaml:"level" default:"info"`
	Format string `env:"LOG_FORMAT" yaml:"format" default:"json"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	HealthCheckTimeout time.Duration `env:"HEALTH_CHECK_TIMEOUT" yaml:"health_check_timeout" default:"10s"`
	MetricsEnabled     bool          `env:"METRICS_ENABLED" yaml:"metrics_enabled" default:"true"`
	MetricsPort        int           `env:"METRICS_PORT" yaml:"metrics_port" default:"9090"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://localhost:3000"`
	MaxRequestSize     int64    `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"` // 1MB default
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be greater than 0"))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "gemini":
		if c.Gemini.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("GEMINI_API_KEY is required when llm provider is gemini"))
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("OPENAI_API_KEY is required when llm provider is openai"))
		}
	case "claude":
		if c.Anthropic.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("ANTHROPIC_API_KEY is required when llm provider is claude"))
		}
		// Claude has no embeddings endpoint, so retrieval needs a key
		// for one of the embedding providers.
		if c.Gemini.APIKey == "" && c.OpenAI.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("claude provider needs GEMINI_API_KEY or OPENAI_API_KEY for embeddings"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("llm provider must be one of [gemini, openai, claude], got %q", c.LLM.Provider))
	}

	if c.Memory.ReadWindow <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory read_window must be greater than 0"))
	}
	if c.Memory.TrimRetention <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory trim_retention must be greater than 0"))
	}
	if c.Memory.RetrievalK <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory retrieval_k must be greater than 0"))
	}

	if c.RateLimit.Limit <= 0 {
		result = multierror.Append(result, fmt.Errorf("rate limit must be greater than 0"))
	}
	if c.RateLimit.Window <= 0 {
		result = multierror.Append(result, fmt.Errorf("rate limit window must be greater than 0"))
	}

	if c.Redis.URL == "" {
		result = multierror.Append(result, fmt.Errorf("REDIS_URL is required"))
	}

	if c.Database.URL != "" && c.Database.MaxConnections <= 0 {
		result = multierror.Append(result, fmt.Errorf("database_max_connections must be greater than 0 when database is configured"))
	}

	if c.Security.MaxRequestSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_request_size must be greater than 0"))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return logger.DebugLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.Port),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.IntField("memory_read_window", c.Memory.ReadWindow),
		logger.IntField("rate_limit", c.RateLimit.Limit),
		logger.StringField("rate_limit_window", c.RateLimit.Window.String()),
		logger.BoolField("rate_limit_fail_closed", c.RateLimit.FailClosed),
		logger.BoolField("metrics_enabled", c.Monitoring.MetricsEnabled),
		logger.BoolField("database_configured", c.Database.URL != ""),
		logger.BoolField("vector_persistence", c.Vector.PersistDir != ""),
	)
}
