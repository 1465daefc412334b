// Package chat_service orchestrates one chat turn: admission control,
// companion lookup, history seeding and recall, memory retrieval, prompt
// assembly, model invocation, and history write-back.
package chat_service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Patelhetu-177/AvatarAI/internal/companion_store"
	"github.com/Patelhetu-177/AvatarAI/internal/history_store"
	"github.com/Patelhetu-177/AvatarAI/internal/models"
	"github.com/Patelhetu-177/AvatarAI/internal/rate_limiter"
	"github.com/Patelhetu-177/AvatarAI/internal/retriever"
	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

// ErrUnauthorized is returned when the request carries no user identity.
var ErrUnauthorized = errors.New("user identity is required")

// RateLimitedError is returned when the turn is rejected by admission
// control. ResetAt tells the caller when the window rolls over.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return "rate limit exceeded"
}

// HistoryStore is the conversation log the service reads and writes.
type HistoryStore interface {
	Append(ctx context.Context, key history_store.ConversationKey, line string) (bool, error)
	ReadRecent(ctx context.Context, key history_store.ConversationKey, limit int) (string, error)
	SeedIfEmpty(ctx context.Context, key history_store.ConversationKey, seedText, delimiter string) error
	TrimTo(ctx context.Context, key history_store.ConversationKey, maxItems int) error
}

// MemoryRetriever finds prior content similar to the current context.
type MemoryRetriever interface {
	Search(ctx context.Context, contextText, entityScopeID string, k int) []retriever.Result
}

// RateLimiter gates each turn by caller identifier.
type RateLimiter interface {
	Check(ctx context.Context, identifier string) (rate_limiter.Decision, error)
}

// seedDelimiter separates example turns inside a companion's seed text.
const seedDelimiter = "\n\n"

// TurnRequest is one incoming user message.
type TurnRequest struct {
	CompanionID uuid.UUID
	UserID      string
	Prompt      string
}

// TurnResponse is the companion's reply.
type TurnResponse struct {
	Text          string
	CompanionName string
}

// Config carries the dependencies for a Service.
type Config struct {
	Companions companion_store.Store
	History    HistoryStore
	Retriever  MemoryRetriever
	Limiter    RateLimiter
	Model      models.ChatModel
	Logger     logger.Logger

	// MaxTokens bounds the model reply; zero uses the model default.
	MaxTokens int64
	// RetrievalK is how many passages to retrieve per turn; zero uses
	// the retriever default.
	RetrievalK int
}

// Service runs chat turns.
type Service struct {
	companions companion_store.Store
	history    HistoryStore
	retriever  MemoryRetriever
	limiter    RateLimiter
	model      models.ChatModel
	log        logger.Logger
	maxTokens  int64
	retrievalK int
}

// New creates a Service from cfg.
func New(cfg Config) *Service {
	if cfg.Companions == nil {
		panic("companion store cannot be nil")
	}
	if cfg.History == nil {
		panic("history store cannot be nil")
	}
	if cfg.Retriever == nil {
		panic("retriever cannot be nil")
	}
	if cfg.Limiter == nil {
		panic("rate limiter cannot be nil")
	}
	if cfg.Model == nil {
		panic("chat model cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	return &Service{
		companions: cfg.Companions,
		history:    cfg.History,
		retriever:  cfg.Retriever,
		limiter:    cfg.Limiter,
		model:      cfg.Model,
		log:        cfg.Logger,
		maxTokens:  cfg.MaxTokens,
		retrievalK: cfg.RetrievalK,
	}
}

// Turn runs one chat exchange. History and model failures abort the turn;
// retrieval failures degrade to a reply without extra context.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if req.UserID == "" {
		return nil, ErrUnauthorized
	}

	decision, err := s.limiter.Check(ctx, "chat:"+req.UserID)
	if err != nil {
		return nil, fmt.Errorf("admission check: %w", err)
	}
	if !decision.Allowed {
		return nil, &RateLimitedError{ResetAt: decision.ResetAt}
	}

	companion, err := s.companions.GetCompanion(ctx, req.CompanionID)
	if err != nil {
		return nil, fmt.Errorf("loading companion: %w", err)
	}

	key := history_store.ConversationKey{
		EntityID:  companion.ID.String(),
		ModelName: s.model.Name(),
		UserID:    req.UserID,
	}

	if err := s.history.SeedIfEmpty(ctx, key, companion.Seed, seedDelimiter); err != nil {
		return nil, fmt.Errorf("seeding history: %w", err)
	}

	if _, err := s.companions.CreateMessage(ctx, companion_store.CreateMessageRequest{
		CompanionID: companion.ID,
		UserID:      req.UserID,
		Role:        companion_store.RoleUser,
		Content:     req.Prompt,
	}); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	if _, err := s.history.Append(ctx, key, "User: "+req.Prompt); err != nil {
		return nil, fmt.Errorf("recording user turn: %w", err)
	}

	recent, err := s.history.ReadRecent(ctx, key, 0)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	// Retrieval degrades to no passages rather than failing the turn.
	passages := s.retriever.Search(ctx, recent, companion.ID.String(), s.retrievalK)

	reply, err := s.model.Generate(ctx, models.ChatRequest{
		System:    s.buildSystemPrompt(companion, passages),
		User:      recent + "\n" + companion.Name + ":",
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	text := strings.TrimSpace(reply.Text)
	if text == "" {
		return nil, fmt.Errorf("model returned an empty reply")
	}

	if _, err := s.history.Append(ctx, key, "AI: "+text); err != nil {
		return nil, fmt.Errorf("recording model turn: %w", err)
	}
	if _, err := s.companions.CreateMessage(ctx, companion_store.CreateMessageRequest{
		CompanionID: companion.ID,
		UserID:      req.UserID,
		Role:        companion_store.RoleSystem,
		Content:     text,
	}); err != nil {
		return nil, fmt.Errorf("persisting model message: %w", err)
	}
	if err := s.history.TrimTo(ctx, key, 0); err != nil {
		s.log.Warn("failed to trim history",
			logger.StringField("companion_id", companion.ID.String()),
			logger.ErrorField(err))
	}

	return &TurnResponse{Text: text, CompanionName: companion.Name}, nil
}

func (s *Service) buildSystemPrompt(companion *companion_store.Companion, passages []retriever.Result) string {
	var b strings.Builder
	b.WriteString(companion.Instructions)
	if len(passages) > 0 {
		b.WriteString("\n\nBelow are relevant details about " + companion.Name + "'s past and the conversation you are in.\n")
		for _, p := range passages {
			b.WriteString(p.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}
