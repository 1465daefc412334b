package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patelhetu-177/AvatarAI/internal/chat_service"
	"github.com/Patelhetu-177/AvatarAI/internal/companion_store"
	appconfig "github.com/Patelhetu-177/AvatarAI/internal/config"
	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

type stubChat struct {
	resp *chat_service.TurnResponse
	err  error
	last chat_service.TurnRequest
}

func (s *stubChat) Turn(_ context.Context, req chat_service.TurnRequest) (*chat_service.TurnResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newTestServer(chat ChatService) *Server {
	cfg := &appconfig.AppConfig{
		Port:           8080,
		RequestTimeout: 5 * time.Second,
		IdleTimeout:    5 * time.Second,
	}
	cfg.Security.MaxRequestSize = 1 << 20
	cfg.Security.CORSAllowedOrigins = []string{"http://localhost:3000"}

	log := logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return New(cfg, log, Deps{Chat: chat})
}

func postChat(t *testing.T, s *Server, companionID, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/"+companionID, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	chat := &stubChat{resp: &chat_service.TurnResponse{Text: "Hello!", CompanionName: "Albert"}}
	s := newTestServer(chat)
	id := uuid.New()

	rec := postChat(t, s, id.String(), "user-1", `{"prompt":"Hi"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"Hello!","companion":"Albert"}`, rec.Body.String())
	assert.Equal(t, id, chat.last.CompanionID)
	assert.Equal(t, "user-1", chat.last.UserID)
	assert.Equal(t, "Hi", chat.last.Prompt)
}

func TestHandleChatInvalidCompanionID(t *testing.T) {
	s := newTestServer(&stubChat{})

	rec := postChat(t, s, "not-a-uuid", "user-1", `{"prompt":"Hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatEmptyPrompt(t *testing.T) {
	s := newTestServer(&stubChat{})

	rec := postChat(t, s, uuid.NewString(), "user-1", `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatUnauthorized(t *testing.T) {
	s := newTestServer(&stubChat{err: chat_service.ErrUnauthorized})

	rec := postChat(t, s, uuid.NewString(), "", `{"prompt":"Hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleChatRateLimited(t *testing.T) {
	s := newTestServer(&stubChat{err: &chat_service.RateLimitedError{
		ResetAt: time.Now().Add(8 * time.Second),
	}})

	rec := postChat(t, s, uuid.NewString(), "user-1", `{"prompt":"Hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleChatCompanionNotFound(t *testing.T) {
	s := newTestServer(&stubChat{err: companion_store.ErrNotFound})

	rec := postChat(t, s, uuid.NewString(), "user-1", `{"prompt":"Hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChatInternalError(t *testing.T) {
	s := newTestServer(&stubChat{err: errors.New("model exploded")})

	rec := postChat(t, s, uuid.NewString(), "user-1", `{"prompt":"Hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "model exploded",
		"internal detail must not leak to clients")
}
