// Package ratelimit implements a Redis-backed sliding-window rate
// limiter keyed on (principal, role).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ai-council/councild/pkg/config"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool

	// Limit and Remaining describe the caller's quota after this check.
	Limit     int
	Remaining int

	// RetryAfter is how long until the oldest in-window entry expires.
	// Set only on denial.
	RetryAfter time.Duration
}

// Limiter admits or rejects submissions against per-role hourly quotas.
// Window state lives in Redis sorted sets, one per (principal, role), so
// counts survive restarts and are shared across replicas. Expiry is lazy:
// stale entries are trimmed on each check.
type Limiter struct {
	client *redis.Client
	limits *config.LimitsConfig

	// now is the clock, overridable in tests.
	now func() time.Time
}

// New creates a limiter.
func New(client *redis.Client, limits *config.LimitsConfig) *Limiter {
	return &Limiter{
		client: client,
		limits: limits,
		now:    time.Now,
	}
}

func windowKey(principal string, role config.Role) string {
	return fmt.Sprintf("ratelimit:%s:%s", principal, role)
}

// Check records one submission attempt and reports whether it is within
// quota. A denied attempt is not counted against the window.
func (l *Limiter) Check(ctx context.Context, principal string, role config.Role) (*Decision, error) {
	limit := l.limits.ForRole(role)
	window := l.limits.WindowSpan
	now := l.now()
	key := windowKey(principal, role)
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", now.Add(-window).UnixMilli()))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(card.Val())
	if count <= limit {
		return &Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - count,
		}, nil
	}

	// Over quota: withdraw this attempt and compute when capacity frees.
	if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
		slog.Warn("Failed to withdraw denied rate limit entry", "error", err)
	}

	retryAfter := window
	oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		expiresAt := time.UnixMilli(int64(oldest[0].Score)).Add(window)
		retryAfter = time.Duration(math.Ceil(expiresAt.Sub(now).Seconds())) * time.Second
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
	}

	return &Decision{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		RetryAfter: retryAfter,
	}, nil
}

// Usage returns the current in-window count without recording an attempt.
func (l *Limiter) Usage(ctx context.Context, principal string, role config.Role) (int, error) {
	key := windowKey(principal, role)
	now := l.now()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", now.Add(-l.limits.WindowSpan).UnixMilli()))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit usage read failed: %w", err)
	}
	return int(card.Val()), nil
}
