package companion_store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool, log logger.Logger) *PostgresStore {
	if db == nil {
		panic("database pool cannot be nil")
	}
	if log == nil {
		panic("logger cannot be nil")
	}
	return &PostgresStore{db: db, logger: log}
}

// GetCompanion looks up one companion by id.
func (s *PostgresStore) GetCompanion(ctx context.Context, id uuid.UUID) (*Companion, error) {
	const query = `
		SELECT id, user_name, name, instructions, seed, created_at, updated_at
		FROM companions
		WHERE id = $1`

	var c Companion
	err := s.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.UserName, &c.Name, &c.Instructions, &c.Seed, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("companion %s: %w", id, ErrNotFound)
	}
	if err != nil {
		s.logger.Error("failed to get companion",
			logger.StringField("companion_id", id.String()),
			logger.ErrorField(err))
		return nil, fmt.Errorf("get companion: %w", err)
	}
	return &c, nil
}

// CreateMessage persists one conversation turn.
func (s *PostgresStore) CreateMessage(ctx context.Context, req CreateMessageRequest) (*Message, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid message role %q", req.Role)
	}

	const query = `
		INSERT INTO messages (id, companion_id, user_id, role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, companion_id, user_id, role, content, created_at`

	var m Message
	err := s.db.QueryRow(ctx, query,
		uuid.New(), req.CompanionID, req.UserID, string(req.Role), req.Content).Scan(
		&m.ID, &m.CompanionID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		s.logger.Error("failed to create message",
			logger.StringField("companion_id", req.CompanionID.String()),
			logger.ErrorField(err))
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &m, nil
}

// ListMessages returns a user's messages with one companion, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, companionID uuid.UUID, userID string, limit int) ([]Message, error) {
	query := `
		SELECT id, companion_id, user_id, role, content, created_at
		FROM messages
		WHERE companion_id = $1 AND user_id = $2
		ORDER BY created_at ASC`
	args := []any{companionID, userID}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to list messages",
			logger.StringField("companion_id", companionID.String()),
			logger.ErrorField(err))
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.CompanionID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
