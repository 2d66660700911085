// Package cache is a read-through Redis cache for resolved availability.
// The store remains the source of truth; cache misses and Redis failures
// both fall through to the resolver.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dentsched/internal/metrics"
	"dentsched/internal/model"
)

// AvailabilityCache caches resolved slot lists keyed by provider, branch
// and date. A nil client disables caching entirely.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// New creates a cache over the given Redis client. Pass a nil client to
// run without caching.
func New(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl, logger: logger}
}

func slotsKey(providerID, branch, date string) string {
	return fmt.Sprintf("availability:%s:%s:%s", providerID, model.BranchKey(branch), date)
}

func providerPattern(providerID string) string {
	return fmt.Sprintf("availability:%s:*", providerID)
}

// GetSlots returns the cached slot list, or ok=false on miss or any
// Redis error.
func (c *AvailabilityCache) GetSlots(ctx context.Context, providerID, branch, date string) ([]model.TimeSlot, bool) {
	if c.client == nil || c.ttl <= 0 {
		return nil, false
	}
	val, err := c.client.Get(ctx, slotsKey(providerID, branch, date)).Result()
	if err != nil {
		metrics.IncCacheMiss()
		return nil, false
	}
	var slots []model.TimeSlot
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		metrics.IncCacheMiss()
		return nil, false
	}
	metrics.IncCacheHit()
	return slots, true
}

// SetSlots stores a resolved slot list. Write failures are logged and
// otherwise ignored.
func (c *AvailabilityCache) SetSlots(ctx context.Context, providerID, branch, date string, slots []model.TimeSlot) {
	if c.client == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, slotsKey(providerID, branch, date), data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Msg("availability cache write failed")
	}
}

// InvalidateProvider drops every cached entry for the provider. Called
// after any schedule or unavailability write.
func (c *AvailabilityCache) InvalidateProvider(ctx context.Context, providerID string) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, providerPattern(providerID), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Str("provider_id", providerID).Msg("availability cache scan failed")
		}
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
			c.logger.Warn().Err(err).Str("provider_id", providerID).Msg("availability cache invalidation failed")
		}
	}
}
