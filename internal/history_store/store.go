// Package history_store maintains the ordered, trimmed log of dialogue turns
// for each conversation, backed by Redis sorted sets.
package history_store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

const (
	// DefaultReadWindow is how many recent turns a read returns.
	DefaultReadWindow = 30
	// DefaultTrimRetention is how many turns a trim keeps.
	DefaultTrimRetention = 30
)

// seedScript seeds a partition atomically: the existence check and the
// ranked inserts run as one script, so a concurrent duplicate seed is a
// no-op rather than a double write.
var seedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local added = 0
for i = 1, #ARGV do
  local rank = redis.call("INCR", KEYS[2])
  redis.call("ZADD", KEYS[1], rank, ARGV[i])
  added = added + 1
end
return added
`)

// Store is the append-only, rank-ordered log of dialogue turns per
// conversation. Ranks come from a per-partition monotonic counter, so
// read-back order always matches submission order for a serial caller.
type Store struct {
	client        redis.UniversalClient
	log           logger.Logger
	readWindow    int
	trimRetention int
}

// Config holds configuration for the history store.
type Config struct {
	Client redis.UniversalClient
	Logger logger.Logger

	// ReadWindow bounds ReadRecent when the caller passes no limit.
	// Defaults to DefaultReadWindow.
	ReadWindow int
	// TrimRetention bounds TrimTo when the caller passes no limit.
	// Defaults to DefaultTrimRetention.
	TrimRetention int
}

// New creates a new history store with the given configuration.
func New(cfg Config) *Store {
	if cfg.Client == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.ReadWindow <= 0 {
		cfg.ReadWindow = DefaultReadWindow
	}
	if cfg.TrimRetention <= 0 {
		cfg.TrimRetention = DefaultTrimRetention
	}

	return &Store{
		client:        cfg.Client,
		log:           cfg.Logger,
		readWindow:    cfg.ReadWindow,
		trimRetention: cfg.TrimRetention,
	}
}

// Append adds one ranked entry to the conversation partition. It reports
// false without writing when the key carries no user ID: anonymous context
// never gets memory. Backend errors propagate, since silently losing a turn
// is worse than failing the chat turn.
func (s *Store) Append(ctx context.Context, key ConversationKey, line string) (bool, error) {
	if key.UserID == "" {
		s.log.Debug("Skipping history append for anonymous context",
			logger.StringField("entity_id", key.EntityID))
		return false, nil
	}

	rank, err := s.client.Incr(ctx, key.rankKey()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to advance history rank: %w", err)
	}

	err = s.client.ZAdd(ctx, key.StorageKey(), redis.Z{
		Score:  float64(rank),
		Member: line,
	}).Err()
	if err != nil {
		return false, fmt.Errorf("failed to append history entry: %w", err)
	}
	return true, nil
}

// ReadRecent returns the last limit entries joined by newline, oldest first.
// A non-positive limit uses the configured read window. A missing partition
// or anonymous key yields an empty string, not an error.
func (s *Store) ReadRecent(ctx context.Context, key ConversationKey, limit int) (string, error) {
	if key.UserID == "" {
		return "", nil
	}
	if limit <= 0 {
		limit = s.readWindow
	}

	entries, err := s.client.ZRange(ctx, key.StorageKey(), int64(-limit), -1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read history: %w", err)
	}
	return strings.Join(entries, "\n"), nil
}

// SeedIfEmpty splits seedText on delimiter and writes the lines with
// increasing ranks, but only if the partition is currently empty. The check
// and the writes run as one Redis script, so concurrent seeds cannot
// duplicate content. An empty delimiter defaults to newline.
func (s *Store) SeedIfEmpty(ctx context.Context, key ConversationKey, seedText, delimiter string) error {
	if seedText == "" {
		return nil
	}
	if delimiter == "" {
		delimiter = "\n"
	}

	var lines []any
	for _, part := range strings.Split(seedText, delimiter) {
		if part == "" {
			continue
		}
		lines = append(lines, part)
	}
	if len(lines) == 0 {
		return nil
	}

	added, err := seedScript.Run(ctx, s.client,
		[]string{key.StorageKey(), key.rankKey()}, lines...).Int()
	if err != nil {
		return fmt.Errorf("failed to seed history: %w", err)
	}

	if added > 0 {
		s.log.Info("Seeded conversation history",
			logger.StringField("entity_id", key.EntityID),
			logger.IntField("lines", added))
	}
	return nil
}

// TrimTo removes entries outside the most-recent maxItems, keyed by rank.
// A non-positive maxItems uses the configured trim retention.
func (s *Store) TrimTo(ctx context.Context, key ConversationKey, maxItems int) error {
	if maxItems <= 0 {
		maxItems = s.trimRetention
	}

	err := s.client.ZRemRangeByRank(ctx, key.StorageKey(), 0, int64(-maxItems-1)).Err()
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// Len reports how many entries the partition currently holds.
func (s *Store) Len(ctx context.Context, key ConversationKey) (int64, error) {
	n, err := s.client.ZCard(ctx, key.StorageKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return n, nil
}
