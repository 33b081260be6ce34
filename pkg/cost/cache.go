package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
)

// EstimateCache stores computed estimates in Redis, keyed on the length
// bucket and mode. Cache failures degrade to recomputation, never to
// request failure.
type EstimateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEstimateCache creates a cache with the given TTL.
func NewEstimateCache(client *redis.Client, ttl time.Duration) *EstimateCache {
	return &EstimateCache{client: client, ttl: ttl}
}

func estimateKey(bucket int, mode config.ExecutionMode) string {
	return fmt.Sprintf("cost:estimate:%d:%s", bucket, mode)
}

// Get returns a cached estimate, if present and parseable.
func (c *EstimateCache) Get(ctx context.Context, bucket int, mode config.ExecutionMode) (*models.CostEstimate, bool) {
	data, err := c.client.Get(ctx, estimateKey(bucket, mode)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Estimate cache read failed", "error", err)
		}
		return nil, false
	}

	var est models.CostEstimate
	if err := json.Unmarshal(data, &est); err != nil {
		slog.Warn("Estimate cache entry corrupt, discarding", "error", err)
		return nil, false
	}
	return &est, true
}

// Set stores an estimate with the cache TTL.
func (c *EstimateCache) Set(ctx context.Context, bucket int, mode config.ExecutionMode, est *models.CostEstimate) {
	data, err := json.Marshal(est)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, estimateKey(bucket, mode), data, c.ttl).Err(); err != nil {
		slog.Warn("Estimate cache write failed", "error", err)
	}
}
