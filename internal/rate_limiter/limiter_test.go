package rate_limiter

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg.Store = NewRedisCounterStore(client)
	cfg.Logger = logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard})
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l, mr
}

// midWindow pins the clock to the middle of a bucket so a test can never
// straddle a bucket boundary between calls.
func midWindow(window time.Duration) func() time.Time {
	bucket := time.Now().Truncate(window)
	at := bucket.Add(window / 2)
	return func() time.Time { return at }
}

func TestCheckDeniesWhenLimitExhausted(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Limit: 5, Window: 10 * time.Second, Now: midWindow(10 * time.Second)})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Check(ctx, "user-1:/api/chat")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d should be admitted", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}

	d, err := l.Check(ctx, "user-1:/api/chat")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.False(t, d.Cached)
}

func TestCheckIsolatesIdentifiers(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Limit: 2, Window: 10 * time.Second, Now: midWindow(10 * time.Second)})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Check(ctx, "user-1:/api/chat")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Check(ctx, "user-1:/api/chat")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = l.Check(ctx, "user-2:/api/chat")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "an exhausted identifier must not affect others")
}

func TestCheckAllowsAgainAfterWindowElapses(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	l, _ := newTestLimiter(t, Config{
		Limit:  2,
		Window: 10 * time.Second,
		// Keep the denial cache shorter than the clock jump below so
		// the post-window check reaches the counter store.
		CacheTTL: time.Millisecond,
		Now:      clock,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Check(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Check(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	now = now.Add(21 * time.Second)
	time.Sleep(5 * time.Millisecond)

	d, err = l.Check(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "the budget must recover once both window buckets expire")
}

func TestCheckServesDenialFromLocalCache(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Limit: 1, Window: 10 * time.Second, CacheTTL: 5 * time.Second, Now: midWindow(10 * time.Second)})
	ctx := context.Background()

	d, err := l.Check(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	first, err := l.Check(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, first.Allowed)
	require.False(t, first.Cached)

	// The backend going away proves the next decision is local.
	mr.Close()

	second, err := l.Check(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, second.Allowed)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Remaining, second.Remaining)
	assert.Equal(t, first.ResetAt, second.ResetAt)
}

func TestCheckFailsOpenWhenBackendUnreachable(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Limit: 5, Window: 10 * time.Second})
	mr.Close()

	d, err := l.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailedOpen)
	assert.Equal(t, 1, d.Remaining)
}

func TestCheckFailsClosedWhenConfigured(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Limit: 5, Window: 10 * time.Second, Mode: FailClosed})
	mr.Close()

	d, err := l.Check(context.Background(), "user-1")
	require.Error(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.FailedOpen)
}

func TestCheckDoesNotCacheFailOpenDecisions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := New(Config{
		Store:  NewRedisCounterStore(client),
		Logger: logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard}),
		Limit:  5,
		Window: 10 * time.Second,
		Now:    midWindow(10 * time.Second),
	})
	require.NoError(t, err)
	t.Cleanup(l.Close)
	ctx := context.Background()

	mr.SetError("backend down")
	d, err := l.Check(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, d.FailedOpen)

	mr.SetError("")
	d, err = l.Check(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Cached, "a recovered backend must be consulted again")
	assert.False(t, d.FailedOpen)
	assert.Equal(t, 4, d.Remaining)
}

func TestTakeReportsResetAtEndOfBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisCounterStore(client)

	now := time.Now()
	_, resetAt, err := store.Take(context.Background(), "user-1", 5, 10*time.Second, now)
	require.NoError(t, err)
	assert.True(t, resetAt.After(now))
	assert.LessOrEqual(t, resetAt.Sub(now), 10*time.Second)
}
