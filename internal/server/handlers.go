package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Patelhetu-177/AvatarAI/internal/chat_service"
	"github.com/Patelhetu-177/AvatarAI/internal/companion_store"
	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

// ChatService runs one chat exchange.
type ChatService interface {
	Turn(ctx context.Context, req chat_service.TurnRequest) (*chat_service.TurnResponse, error)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Reply     string `json:"reply"`
	Companion string `json:"companion"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	companionID, err := uuid.Parse(chi.URLParam(r, "companionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid companion id"})
		return
	}

	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.Security.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}

	resp, err := s.deps.Chat.Turn(r.Context(), chat_service.TurnRequest{
		CompanionID: companionID,
		UserID:      r.Header.Get("X-User-ID"),
		Prompt:      req.Prompt,
	})
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: resp.Text, Companion: resp.CompanionName})
}

func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *chat_service.RateLimitedError
	switch {
	case errors.Is(err, chat_service.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "user identity is required"})
	case errors.As(err, &rateErr):
		if wait := time.Until(rateErr.ResetAt); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	case errors.Is(err, companion_store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "companion not found"})
	default:
		s.log.Error("chat turn failed",
			logger.HTTPPathField(r.URL.Path),
			logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "something went wrong"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
