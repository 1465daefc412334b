package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Patelhetu-177/AvatarAI/internal/chat_service"
	"github.com/Patelhetu-177/AvatarAI/internal/companion_store"
	appconfig "github.com/Patelhetu-177/AvatarAI/internal/config"
	"github.com/Patelhetu-177/AvatarAI/internal/embedding_cache"
	"github.com/Patelhetu-177/AvatarAI/internal/history_store"
	"github.com/Patelhetu-177/AvatarAI/internal/models"
	"github.com/Patelhetu-177/AvatarAI/internal/models/anthropic"
	"github.com/Patelhetu-177/AvatarAI/internal/models/gemini"
	"github.com/Patelhetu-177/AvatarAI/internal/models/openai"
	"github.com/Patelhetu-177/AvatarAI/internal/rate_limiter"
	"github.com/Patelhetu-177/AvatarAI/internal/retriever"
	"github.com/Patelhetu-177/AvatarAI/internal/server"
	"github.com/Patelhetu-177/AvatarAI/internal/vector_index"
	pkgconfig "github.com/Patelhetu-177/AvatarAI/pkg/config"
	"github.com/Patelhetu-177/AvatarAI/pkg/health"
	"github.com/Patelhetu-177/AvatarAI/pkg/health/checkers"
	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
	"github.com/Patelhetu-177/AvatarAI/pkg/metrics"
	"github.com/Patelhetu-177/AvatarAI/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("avatarai: %v", err)
	}
}

//nolint:revive // cognitive-complexity: startup wiring is sequential by nature
func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfg appconfig.AppConfig
	if err := pkgconfig.Load(&cfg, os.Getenv("CONFIG_FILE"), true); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logr := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	})
	cfg.LogConfig(logr)

	var m *metrics.Metrics
	var metricsErrs <-chan error
	if cfg.Monitoring.MetricsEnabled {
		m = metrics.New(logr)
		metricsErrs = m.Listen(cfg.Monitoring.MetricsPort)
	}

	redisClient, err := newRedisClient(&cfg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	healthChecker := health.New(
		health.WithTimeout(cfg.Monitoring.HealthCheckTimeout),
		health.WithLogger(logr),
	)
	healthChecker.AddReadinessCheck(checkers.NewRedisChecker(redisClient, "redis"))

	companions, pool, err := newCompanionStore(ctx, &cfg, logr)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		healthChecker.AddReadinessCheck(checkers.NewPostgresChecker(pool, "postgres"))
	}

	chatModel, embedder, err := newModels(ctx, &cfg, logr)
	if err != nil {
		return err
	}

	index, err := newVectorIndex(&cfg, logr)
	if err != nil {
		return err
	}

	embeddings := embedding_cache.New(embedding_cache.Config{
		Client:   redisClient,
		Embedder: embedder,
		Logger:   logr,
		TTL:      cfg.Memory.EmbeddingTTL,
		Metrics:  m,
	})

	memories := retriever.New(retriever.Config{
		Index:      index,
		Embeddings: embeddings,
		Logger:     logr,
		Metrics:    m,
	})

	limiterMode := rate_limiter.FailOpen
	if cfg.RateLimit.FailClosed {
		limiterMode = rate_limiter.FailClosed
	}
	limiter, err := rate_limiter.New(rate_limiter.Config{
		Store:    rate_limiter.NewRedisCounterStore(redisClient),
		Logger:   logr,
		Metrics:  m,
		Limit:    cfg.RateLimit.Limit,
		Window:   cfg.RateLimit.Window,
		CacheTTL: cfg.RateLimit.CacheTTL,
		Mode:     limiterMode,
	})
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}
	defer limiter.Close()

	history := history_store.New(history_store.Config{
		Client:        redisClient,
		Logger:        logr,
		ReadWindow:    cfg.Memory.ReadWindow,
		TrimRetention: cfg.Memory.TrimRetention,
	})

	chat := chat_service.New(chat_service.Config{
		Companions: companions,
		History:    history,
		Retriever:  memories,
		Limiter:    limiter,
		Model:      chatModel,
		Logger:     logr,
		RetrievalK: cfg.Memory.RetrievalK,
	})

	srv := server.New(&cfg, logr, server.Deps{
		Chat:    chat,
		Health:  healthChecker,
		Metrics: m,
	})

	serverErrs := srv.Listen()
	errChans := []<-chan error{serverErrs}
	if metricsErrs != nil {
		errChans = append(errChans, metricsErrs)
	}
	errs := utils.MergeErrorChans(errChans...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logr.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
	case err := <-errs:
		if err != nil {
			logr.Error("Server failed", logger.ErrorField(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("HTTP server shutdown error", logger.ErrorField(err))
	}
	if m != nil {
		if err := m.Shutdown(shutdownCtx); err != nil {
			logr.Error("Metrics server shutdown error", logger.ErrorField(err))
		}
	}

	logr.Info("Shutdown complete")
	return nil
}

func newRedisClient(cfg *appconfig.AppConfig) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.Database != 0 {
		opts.DB = cfg.Redis.Database
	}
	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = cfg.Redis.Timeout
	opts.WriteTimeout = cfg.Redis.Timeout
	return redis.NewClient(opts), nil
}

func newCompanionStore(ctx context.Context, cfg *appconfig.AppConfig, logr logger.Logger) (companion_store.Store, *pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		logr.Warn("DATABASE_URL not set, using in-memory companion store")
		return companion_store.NewMemoryStore(), nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return companion_store.NewPostgresStore(pool, logr), pool, nil
}

func newVectorIndex(cfg *appconfig.AppConfig, logr logger.Logger) (*vector_index.ChromemIndex, error) {
	if cfg.Vector.PersistDir != "" {
		logr.Info("Using persistent vector index",
			logger.StringField("dir", cfg.Vector.PersistDir))
		return vector_index.NewPersistentChromemIndex(cfg.Vector.PersistDir)
	}
	return vector_index.NewChromemIndex()
}

// newModels builds the chat model and the embedder for the configured
// provider. Claude carries no embeddings endpoint, so it borrows an
// embedder from Gemini or OpenAI.
func newModels(ctx context.Context, cfg *appconfig.AppConfig, logr logger.Logger) (models.ChatModel, models.Embedder, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "gemini":
		logr.Info("Initializing Gemini model", logger.StringField("model", cfg.Gemini.Model))
		m, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gemini model: %w", err)
		}
		return m, m, nil

	case "openai":
		logr.Info("Initializing OpenAI model", logger.StringField("model", cfg.OpenAI.Model))
		m, err := openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("creating openai model: %w", err)
		}
		return m, m, nil

	case "claude":
		logr.Info("Initializing Claude model", logger.StringField("model", cfg.Anthropic.Model))
		m, err := anthropic.NewClaudeModel(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("creating claude model: %w", err)
		}

		embedder, err := newClaudeEmbedder(ctx, cfg, logr)
		if err != nil {
			return nil, nil, err
		}
		return m, embedder, nil

	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}

func newClaudeEmbedder(ctx context.Context, cfg *appconfig.AppConfig, logr logger.Logger) (models.Embedder, error) {
	if cfg.Gemini.APIKey != "" {
		logr.Info("Using Gemini embeddings alongside Claude")
		m, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini embedder: %w", err)
		}
		return m, nil
	}
	logr.Info("Using OpenAI embeddings alongside Claude")
	m, err := openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if err != nil {
		return nil, fmt.Errorf("creating openai embedder: %w", err)
	}
	return m, nil
}
