// Package baseline maintains the per-segment rolling median price.
package baseline

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"dealhound/pkg/models"
	"dealhound/pkg/store"
)

// Calculator computes windowed medians over the store. Medians are always
// recomputed from scratch and applied as a full replace per segment key,
// never mutated incrementally, so partial failures cannot leave the baseline
// drifted.
type Calculator struct {
	store      store.Store
	windowDays int
	maxSamples int
	log        zerolog.Logger
}

func NewCalculator(s store.Store, windowDays, maxSamples int, log zerolog.Logger) *Calculator {
	if windowDays <= 0 {
		windowDays = 30
	}
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Calculator{store: s, windowDays: windowDays, maxSamples: maxSamples, log: log}
}

// Median is the standard definition: middle element for odd-sized samples,
// mean of the two middle elements for even-sized ones.
func Median(prices []int) (float64, bool) {
	n := len(prices)
	if n == 0 {
		return 0, false
	}
	sorted := make([]int, n)
	copy(sorted, prices)
	sort.Ints(sorted)

	if n%2 == 1 {
		return float64(sorted[n/2]), true
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2, true
}

// Lookup returns the current median for the key, or ok=false when the
// segment has no sample yet (cold start).
func (c *Calculator) Lookup(ctx context.Context, key models.SegmentKey) (float64, bool, error) {
	prices, err := c.store.RecentPrices(ctx, key, c.windowDays, c.maxSamples)
	if err != nil {
		return 0, false, err
	}
	m, ok := Median(prices)
	return m, ok, nil
}

// RefreshKey recomputes one segment's median and replaces the stored median
// and derived savings for every listing under the key. An empty sample leaves
// prior derived values untouched.
func (c *Calculator) RefreshKey(ctx context.Context, key models.SegmentKey) (float64, bool, error) {
	m, ok, err := c.Lookup(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	rows, err := c.store.ApplyBaseline(ctx, key, m)
	if err != nil {
		return 0, false, err
	}
	c.log.Debug().
		Str("source", key.Source).Str("city", key.City).Str("model", key.Model).
		Float64("median", m).Int64("rows", rows).
		Msg("baseline refreshed")
	return m, true, nil
}

// RefreshAll recomputes every segment currently present for the source.
// The pass is idempotent; keys that fail are logged and skipped so one bad
// segment never blocks the rest.
func (c *Calculator) RefreshAll(ctx context.Context, source string) error {
	keys, err := c.store.DistinctSegmentKeys(ctx, source)
	if err != nil {
		return err
	}

	updated := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok, err := c.RefreshKey(ctx, key); err != nil {
			c.log.Error().Err(err).
				Str("city", key.City).Str("model", key.Model).
				Msg("baseline refresh failed for segment")
		} else if ok {
			updated++
		}
	}

	c.log.Info().Str("source", source).Int("segments", len(keys)).Int("updated", updated).
		Msg("baseline refresh pass complete")
	return nil
}
