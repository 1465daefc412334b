package rate_limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
	"github.com/Patelhetu-177/AvatarAI/pkg/metrics"
)

const (
	// DefaultLimit and DefaultWindow bound each identifier to 5 requests
	// per 10 seconds unless configured otherwise.
	DefaultLimit  = 5
	DefaultWindow = 10 * time.Second

	// DefaultCacheTTL is how long a decision may be served locally
	// without consulting the shared counter again.
	DefaultCacheTTL = 5 * time.Second

	// DefaultRemoteTimeout caps the round trip to the counter store so a
	// slow backend cannot stall request handling.
	DefaultRemoteTimeout = 500 * time.Millisecond

	// DefaultLatencyWarnThreshold is the round-trip duration above which
	// a warning is logged even though the result is still honored.
	DefaultLatencyWarnThreshold = 300 * time.Millisecond
)

// FailureMode selects what happens when the counter store is unreachable.
type FailureMode int

const (
	// FailOpen admits the request when the backend cannot be consulted.
	FailOpen FailureMode = iota
	// FailClosed rejects the request when the backend cannot be consulted.
	FailClosed
)

// Decision is the outcome of an admission check.
type Decision struct {
	Identifier string
	Allowed    bool
	// Remaining is the budget left in the window after this request.
	Remaining int
	// ResetAt is when the current window bucket rolls over.
	ResetAt time.Time
	// Cached reports that the decision was served from the local cache
	// without touching the counter store.
	Cached bool
	// FailedOpen reports that the decision was fabricated because the
	// counter store was unreachable and the limiter runs fail-open.
	FailedOpen bool
}

// Config carries the dependencies and tuning for a Limiter.
type Config struct {
	Store   CounterStore
	Logger  logger.Logger
	Metrics *metrics.Metrics

	Limit  int
	Window time.Duration

	CacheTTL             time.Duration
	RemoteTimeout        time.Duration
	LatencyWarnThreshold time.Duration

	Mode FailureMode

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Limiter enforces a sliding-window rate limit backed by a shared counter
// store, with a short-lived local cache that absorbs bursts from the same
// identifier without a backend round trip per request.
type Limiter struct {
	store   CounterStore
	log     logger.Logger
	metrics *metrics.Metrics

	limit  int
	window time.Duration

	cache         *ristretto.Cache
	cacheTTL      time.Duration
	remoteTimeout time.Duration
	warnThreshold time.Duration

	mode FailureMode
	now  func() time.Time
}

// New creates a Limiter from cfg, filling unset tunables with defaults.
func New(cfg Config) (*Limiter, error) {
	if cfg.Store == nil {
		panic("counter store cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.LatencyWarnThreshold <= 0 {
		cfg.LatencyWarnThreshold = DefaultLatencyWarnThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decision cache: %w", err)
	}

	return &Limiter{
		store:         cfg.Store,
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
		limit:         cfg.Limit,
		window:        cfg.Window,
		cache:         cache,
		cacheTTL:      cfg.CacheTTL,
		remoteTimeout: cfg.RemoteTimeout,
		warnThreshold: cfg.LatencyWarnThreshold,
		mode:          cfg.Mode,
		now:           cfg.Now,
	}, nil
}

// Check decides whether the request identified by identifier is admitted.
// In fail-open mode the returned error is always nil; in fail-closed mode a
// backend failure is returned alongside a denying decision.
func (l *Limiter) Check(ctx context.Context, identifier string) (Decision, error) {
	if cached, ok := l.cache.Get(identifier); ok {
		d := cached.(Decision)
		d.Cached = true
		l.countDecision("cached")
		return d, nil
	}

	tctx, cancel := context.WithTimeout(ctx, l.remoteTimeout)
	defer cancel()

	start := l.now()
	remaining, resetAt, err := l.store.Take(tctx, identifier, l.limit, l.window, start)
	elapsed := time.Since(start)
	if l.metrics != nil {
		l.metrics.RateLimitLatency.Observe(elapsed.Seconds())
	}
	if err == nil && elapsed > l.warnThreshold {
		l.log.Warn("rate limit check is slow",
			logger.StringField("identifier", identifier),
			logger.DurationField("elapsed", elapsed))
	}

	if err != nil {
		return l.decideOnFailure(identifier, resetAt, err)
	}

	d := Decision{
		Identifier: identifier,
		Allowed:    remaining >= 0,
		Remaining:  max(remaining, 0),
		ResetAt:    resetAt,
	}
	if d.Allowed {
		l.countDecision("allowed")
	} else {
		l.countDecision("denied")
		// Only denials are cached. An identifier over the limit stays
		// denied locally for the cache TTL, which can be stale by up to
		// one TTL once the window rolls over. Admitted requests always
		// reach the counter so the window stays accurate.
		l.cache.SetWithTTL(identifier, d, 1, l.cacheTTL)
		l.cache.Wait()
	}
	return d, nil
}

// Close releases the local decision cache.
func (l *Limiter) Close() {
	l.cache.Close()
}

func (l *Limiter) decideOnFailure(identifier string, resetAt time.Time, cause error) (Decision, error) {
	if l.mode == FailClosed {
		l.log.Error("rate limit backend unreachable, rejecting request",
			logger.StringField("identifier", identifier),
			logger.ErrorField(cause))
		l.countDecision("denied")
		return Decision{Identifier: identifier, ResetAt: resetAt}, fmt.Errorf("rate limit check failed: %w", cause)
	}

	l.log.Error("rate limit backend unreachable, failing open",
		logger.StringField("identifier", identifier),
		logger.ErrorField(cause))
	l.countDecision("fail_open")
	return Decision{
		Identifier: identifier,
		Allowed:    true,
		Remaining:  1,
		ResetAt:    resetAt,
		FailedOpen: true,
	}, nil
}

func (l *Limiter) countDecision(outcome string) {
	if l.metrics == nil {
		return
	}
	l.metrics.RateLimitDecisions.WithLabelValues(outcome).Inc()
}
