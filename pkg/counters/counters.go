// Package counters keeps running per-source tallies of pipeline activity in
// Redis hashes. Counters are best effort: a missing or unreachable Redis
// degrades to a no-op so the pipeline itself never depends on it.
package counters

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "dealhound:stats:"

type Counters struct {
	rdb *redis.Client
	log zerolog.Logger
}

// New connects to Redis at addr. An empty addr returns a disabled instance
// whose methods are all no-ops.
func New(addr, password string, log zerolog.Logger) *Counters {
	c := &Counters{log: log.With().Str("component", "counters").Logger()}
	if addr == "" {
		return c
	}
	c.rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return c
}

func (c *Counters) Enabled() bool { return c.rdb != nil }

func (c *Counters) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Add increments one field of a source's stats hash.
func (c *Counters) Add(ctx context.Context, source, field string, n int64) {
	if c.rdb == nil || n == 0 {
		return
	}
	if err := c.rdb.HIncrBy(ctx, keyPrefix+source, field, n).Err(); err != nil {
		c.log.Warn().Err(err).Str("source", source).Str("field", field).Msg("counter increment failed")
	}
}

// Snapshot returns all accumulated fields for a source.
func (c *Counters) Snapshot(ctx context.Context, source string) (map[string]string, error) {
	if c.rdb == nil {
		return map[string]string{}, nil
	}
	vals, err := c.rdb.HGetAll(ctx, keyPrefix+source).Result()
	if err != nil {
		return nil, fmt.Errorf("counters snapshot for %s: %w", source, err)
	}
	return vals, nil
}

func (c *Counters) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
