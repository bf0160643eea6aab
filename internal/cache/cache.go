// Package cache provides a Redis read-through layer in front of the scores
// repository. Keys are ticker:date:mode; values are the JSON score output.
// Cache misses and Redis outages degrade to the underlying repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/greyoak/score/internal/domain"
	"github.com/greyoak/score/internal/persistence"
)

// DefaultTTL keeps entries warm through a trading day; rescoring upserts
// refresh them explicitly.
const DefaultTTL = 24 * time.Hour

// ScoreCache wraps a ScoresRepo with read-through caching for the hot
// single-score lookup path. List queries pass straight through.
type ScoreCache struct {
	persistence.ScoresRepo

	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger

	// Hit and Miss observe cache outcomes; wired to metrics counters.
	Hit  func()
	Miss func()
}

// New builds the cache around a repository.
func New(repo persistence.ScoresRepo, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ScoreCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ScoreCache{
		ScoresRepo: repo,
		rdb:        rdb,
		ttl:        ttl,
		log:        log.With().Str("component", "cache").Logger(),
		Hit:        func() {},
		Miss:       func() {},
	}
}

// Key renders the cache key for one score identity.
func Key(ticker string, date time.Time, mode domain.Mode) string {
	return fmt.Sprintf("score:%s:%s:%s", ticker, date.Format("2006-01-02"), mode)
}

// Get serves from Redis when possible, falling through to the repository
// and populating the cache on the way back.
func (c *ScoreCache) Get(ctx context.Context, ticker string, date time.Time, mode domain.Mode) (domain.ScoreOutput, error) {
	key := Key(ticker, date, mode)

	blob, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var out domain.ScoreOutput
		if jsonErr := json.Unmarshal(blob, &out); jsonErr == nil {
			c.Hit()
			return out, nil
		}
		// Corrupt entry: drop it and fall through.
		c.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling through")
	}
	c.Miss()

	out, err := c.ScoresRepo.Get(ctx, ticker, date, mode)
	if err != nil {
		return domain.ScoreOutput{}, err
	}
	c.set(ctx, key, out)
	return out, nil
}

// Upsert writes through: the repository first, then the cache entry.
func (c *ScoreCache) Upsert(ctx context.Context, out domain.ScoreOutput) error {
	if err := c.ScoresRepo.Upsert(ctx, out); err != nil {
		return err
	}
	c.set(ctx, Key(out.Ticker, out.Date, out.Mode), out)
	return nil
}

// UpsertBatch writes through the repository then refreshes each entry.
func (c *ScoreCache) UpsertBatch(ctx context.Context, outs []domain.ScoreOutput) error {
	if err := c.ScoresRepo.UpsertBatch(ctx, outs); err != nil {
		return err
	}
	for _, out := range outs {
		c.set(ctx, Key(out.Ticker, out.Date, out.Mode), out)
	}
	return nil
}

func (c *ScoreCache) set(ctx context.Context, key string, out domain.ScoreOutput) {
	blob, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, blob, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
