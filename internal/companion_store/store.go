package companion_store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a companion or message does not exist.
var ErrNotFound = errors.New("not found")

// MessageRole identifies which side of the conversation produced a message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleSystem MessageRole = "system"
)

// Valid reports whether the role is one of the known values.
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleSystem
}

// Companion is a configured chat persona. Instructions describe how the
// persona behaves; Seed is an example conversation used to prime an empty
// history.
type Companion struct {
	ID           uuid.UUID `json:"id"`
	UserName     string    `json:"user_name"`
	Name         string    `json:"name"`
	Instructions string    `json:"instructions"`
	Seed         string    `json:"seed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one persisted conversation turn between a user and a companion.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	CompanionID uuid.UUID   `json:"companion_id"`
	UserID      string      `json:"user_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CreateMessageRequest carries the fields needed to persist a message.
type CreateMessageRequest struct {
	CompanionID uuid.UUID
	UserID      string
	Role        MessageRole
	Content     string
}

// Store is the persistence surface for companions and their message history.
type Store interface {
	GetCompanion(ctx context.Context, id uuid.UUID) (*Companion, error)
	CreateMessage(ctx context.Context, req CreateMessageRequest) (*Message, error)
	// ListMessages returns a user's messages with one companion in
	// ascending creation order, at most limit entries (0 means no cap).
	ListMessages(ctx context.Context, companionID uuid.UUID, userID string, limit int) ([]Message, error)
}
