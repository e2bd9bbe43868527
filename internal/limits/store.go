package limits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genflow/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "genflow:limits:"

// Store reads UserGenerationLimits from postgres with a redis read-through
// cache. Unknown users fall back to the free tier; the row is advisory and a
// cache miss never fails a request path that can proceed without it.
type Store struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewStore builds a limits store. cache may be nil, which disables caching.
func NewStore(db *sql.DB, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *Store {
	return &Store{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// GetLimits returns the user's entitlements, consulting the cache first.
func (s *Store) GetLimits(ctx context.Context, userID string) (UserGenerationLimits, error) {
	if cached, ok := s.fromCache(ctx, userID); ok {
		return cached, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT queue_capacity, tier, per_request_quantity_cap
		 FROM user_generation_limits
		 WHERE user_id = $1`,
		userID,
	)

	var lim UserGenerationLimits
	err := row.Scan(&lim.QueueCapacity, &lim.Tier, &lim.PerRequestQuantityCap)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		lim = FreeTier()
	case err != nil:
		return UserGenerationLimits{}, fmt.Errorf("querying limits for user %s: %w", userID, err)
	}

	s.toCache(ctx, userID, lim)
	return lim, nil
}

func (s *Store) fromCache(ctx context.Context, userID string) (UserGenerationLimits, bool) {
	if s.cache == nil {
		return UserGenerationLimits{}, false
	}

	raw, err := s.cache.Get(ctx, cacheKeyPrefix+userID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("limits cache read failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
		return UserGenerationLimits{}, false
	}

	var lim UserGenerationLimits
	if err := json.Unmarshal([]byte(raw), &lim); err != nil {
		return UserGenerationLimits{}, false
	}
	return lim, true
}

func (s *Store) toCache(ctx context.Context, userID string, lim UserGenerationLimits) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(lim)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+userID, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("limits cache write failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}
