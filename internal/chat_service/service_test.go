package chat_service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patelhetu-177/AvatarAI/internal/companion_store"
	"github.com/Patelhetu-177/AvatarAI/internal/history_store"
	"github.com/Patelhetu-177/AvatarAI/internal/models"
	"github.com/Patelhetu-177/AvatarAI/internal/rate_limiter"
	"github.com/Patelhetu-177/AvatarAI/internal/retriever"
	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

type fakeHistory struct {
	entries map[string][]string
	seeded  map[string]bool
	trimmed int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{entries: make(map[string][]string), seeded: make(map[string]bool)}
}

func (f *fakeHistory) Append(_ context.Context, key history_store.ConversationKey, line string) (bool, error) {
	f.entries[key.StorageKey()] = append(f.entries[key.StorageKey()], line)
	return true, nil
}

func (f *fakeHistory) ReadRecent(_ context.Context, key history_store.ConversationKey, _ int) (string, error) {
	return strings.Join(f.entries[key.StorageKey()], "\n"), nil
}

func (f *fakeHistory) SeedIfEmpty(_ context.Context, key history_store.ConversationKey, seedText, delimiter string) error {
	k := key.StorageKey()
	if f.seeded[k] || len(f.entries[k]) > 0 || seedText == "" {
		return nil
	}
	f.seeded[k] = true
	for _, part := range strings.Split(seedText, delimiter) {
		if part != "" {
			f.entries[k] = append(f.entries[k], part)
		}
	}
	return nil
}

func (f *fakeHistory) TrimTo(context.Context, history_store.ConversationKey, int) error {
	f.trimmed++
	return nil
}

type fakeRetriever struct {
	results   []retriever.Result
	lastText  string
	lastScope string
}

func (f *fakeRetriever) Search(_ context.Context, contextText, entityScopeID string, _ int) []retriever.Result {
	f.lastText = contextText
	f.lastScope = entityScopeID
	return f.results
}

type fakeLimiter struct {
	decision rate_limiter.Decision
	err      error
	calls    int
}

func (f *fakeLimiter) Check(context.Context, string) (rate_limiter.Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeModel struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeModel) Name() string { return "fake-model" }

func (f *fakeModel) Generate(_ context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	f.lastSystem = req.System
	f.lastUser = req.User
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChatResponse{Text: f.reply}, nil
}

type fixture struct {
	service    *Service
	companions *companion_store.MemoryStore
	companion  companion_store.Companion
	history    *fakeHistory
	retriever  *fakeRetriever
	limiter    *fakeLimiter
	model      *fakeModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	companions := companion_store.NewMemoryStore()
	companion := companions.PutCompanion(companion_store.Companion{
		Name:         "Albert",
		Instructions: "You are Albert Einstein.",
		Seed:         "Human: Hi Albert\n\nAlbert: Hello there.",
	})

	f := &fixture{
		companions: companions,
		companion:  companion,
		history:    newFakeHistory(),
		retriever:  &fakeRetriever{},
		limiter:    &fakeLimiter{decision: rate_limiter.Decision{Allowed: true, Remaining: 4}},
		model:      &fakeModel{reply: "  Relativity is about spacetime.  "},
	}
	f.service = New(Config{
		Companions: companions,
		History:    f.history,
		Retriever:  f.retriever,
		Limiter:    f.limiter,
		Model:      f.model,
		Logger:     logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard}),
	})
	return f
}

func TestTurnHappyPath(t *testing.T) {
	f := newFixture(t)
	f.retriever.results = []retriever.Result{{Content: "Albert plays the violin.", Score: 0.9}}

	resp, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: f.companion.ID,
		UserID:      "user-1",
		Prompt:      "Tell me about relativity",
	})
	require.NoError(t, err)
	assert.Equal(t, "Relativity is about spacetime.", resp.Text, "reply must be trimmed")
	assert.Equal(t, "Albert", resp.CompanionName)

	key := history_store.ConversationKey{
		EntityID:  f.companion.ID.String(),
		ModelName: "fake-model",
		UserID:    "user-1",
	}
	entries := f.history.entries[key.StorageKey()]
	require.NotEmpty(t, entries)
	assert.Equal(t, "Human: Hi Albert", entries[0], "seed must land before the first turn")
	assert.Contains(t, entries, "User: Tell me about relativity")
	assert.Equal(t, "AI: Relativity is about spacetime.", entries[len(entries)-1])
	assert.Equal(t, 1, f.history.trimmed)

	assert.Equal(t, f.companion.ID.String(), f.retriever.lastScope)
	assert.Contains(t, f.retriever.lastText, "User: Tell me about relativity")

	assert.Contains(t, f.model.lastSystem, "You are Albert Einstein.")
	assert.Contains(t, f.model.lastSystem, "Albert plays the violin.")
	assert.True(t, strings.HasSuffix(f.model.lastUser, "Albert:"),
		"transcript must end by prompting the companion to speak")

	msgs, err := f.companions.ListMessages(context.Background(), f.companion.ID, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, companion_store.RoleUser, msgs[0].Role)
	assert.Equal(t, companion_store.RoleSystem, msgs[1].Role)
}

func TestTurnWithoutRetrievedPassages(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: f.companion.ID,
		UserID:      "user-1",
		Prompt:      "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "You are Albert Einstein.", f.model.lastSystem,
		"no passage preamble when retrieval finds nothing")
}

func TestTurnRequiresUserIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: f.companion.ID,
		Prompt:      "Hello",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.limiter.calls, "identity is checked before admission")
}

func TestTurnRejectedByRateLimit(t *testing.T) {
	f := newFixture(t)
	resetAt := time.Now().Add(7 * time.Second)
	f.limiter.decision = rate_limiter.Decision{Allowed: false, ResetAt: resetAt}

	_, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: f.companion.ID,
		UserID:      "user-1",
		Prompt:      "Hello",
	})

	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, resetAt, rateErr.ResetAt)
	assert.Empty(t, f.history.entries, "a rejected turn must not touch history")
}

func TestTurnFailClosedLimiterErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.limiter.err = errors.New("counter store down")

	_, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: f.companion.ID,
		UserID:      "user-1",
		Prompt:      "Hello",
	})
	assert.Error(t, err)
}

func TestTurnUnknownCompanion(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: uuid.New(),
		UserID:      "user-1",
		Prompt:      "Hello",
	})
	assert.ErrorIs(t, err, companion_store.ErrNotFound)
}

func TestTurnModelFailureLeavesNoModelTurn(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("provider unavailable")

	_, err := f.service.Turn(context.Background(), TurnRequest{
		CompanionID: f.companion.ID,
		UserID:      "user-1",
		Prompt:      "Hello",
	})
	require.Error(t, err)

	key := history_store.ConversationKey{
		EntityID:  f.companion.ID.String(),
		ModelName: "fake-model",
		UserID:    "user-1",
	}
	for _, entry := range f.history.entries[key.StorageKey()] {
		assert.False(t, strings.HasPrefix(entry, "AI: "),
			"no model turn may be recorded when generation fails")
	}

	msgs, err := f.companions.ListMessages(context.Background(), f.companion.ID, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "only the user message is persisted")
	assert.Equal(t, companion_store.RoleUser, msgs[0].Role)
}
