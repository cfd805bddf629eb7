package baseline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealhound/pkg/models"
	"dealhound/pkg/store"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		prices []int
		want   float64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"single sample", []int{100}, 100, true},
		{"even count averages middle pair", []int{100, 300}, 200, true},
		{"odd count takes middle", []int{900, 100, 200}, 200, true},
		{"outlier does not skew", []int{100, 110, 120, 130, 100000}, 120, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.prices)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func seed(t *testing.T, m *store.Memory, id string, price int, city, model string) {
	t.Helper()
	_, err := m.UpsertListing(context.Background(), models.ListingInput{
		Source:     "avito",
		ExternalID: id,
		Price:      price,
		Model:      model,
		City:       city,
		URL:        "https://example.com/" + id,
	})
	require.NoError(t, err)
}

func TestRefreshKeyReplacesDerivedValues(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	calc := NewCalculator(m, 30, 1000, zerolog.Nop())

	seed(t, m, "1", 50000, "Москва", "iPhone 13")
	seed(t, m, "2", 60000, "Москва", "iPhone 13")
	seed(t, m, "3", 70000, "Москва", "iPhone 13")

	key := models.SegmentKey{City: "Москва", Model: "iPhone 13", Source: "avito"}
	median, ok, err := calc.RefreshKey(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 60000, median, 0.001)

	l, found := m.Listing("avito", "1")
	require.True(t, found)
	assert.InDelta(t, 60000, l.MedianPrice, 0.001)
	assert.InDelta(t, 10000, l.Savings, 0.001)
}

func TestRefreshKeyEmptySegmentIsNoop(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	calc := NewCalculator(m, 30, 1000, zerolog.Nop())

	key := models.SegmentKey{City: "Минск", Model: "iPhone 12", Source: "kufar"}
	_, ok, err := calc.RefreshKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshAllCoversEverySegment(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	calc := NewCalculator(m, 30, 1000, zerolog.Nop())

	seed(t, m, "1", 50000, "Москва", "iPhone 13")
	seed(t, m, "2", 70000, "Москва", "iPhone 13")
	seed(t, m, "3", 30000, "Казань", "iPhone 12")

	require.NoError(t, calc.RefreshAll(ctx, "avito"))

	l1, _ := m.Listing("avito", "1")
	assert.InDelta(t, 60000, l1.MedianPrice, 0.001)

	l3, _ := m.Listing("avito", "3")
	assert.InDelta(t, 30000, l3.MedianPrice, 0.001)
	assert.Zero(t, l3.Savings)
}

func TestSegmentsDoNotBleed(t *testing.T) {
	// Same model in different cities keeps independent baselines.
	ctx := context.Background()
	m := store.NewMemory()
	calc := NewCalculator(m, 30, 1000, zerolog.Nop())

	seed(t, m, "1", 50000, "Москва", "iPhone 13")
	seed(t, m, "2", 20000, "Омск", "iPhone 13")

	median, ok, err := calc.Lookup(ctx, models.SegmentKey{City: "Москва", Model: "iPhone 13", Source: "avito"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 50000, median, 0.001)
}
