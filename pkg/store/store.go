// Package store is the persistence contract the pipeline depends on.
// Listing rows are owned by the ingestion pipeline; subscriber rows are owned
// by the external command surface and read here per cycle.
package store

import (
	"context"

	"dealhound/pkg/models"
)

type Store interface {
	// UpsertListing inserts or updates in place on (source, external id),
	// refreshing price, capacity and the derived median/savings values.
	UpsertListing(ctx context.Context, in models.ListingInput) (*models.Listing, error)

	MarkNotified(ctx context.Context, source, externalID string) error
	IsNotified(ctx context.Context, source, externalID string) (bool, error)
	Exists(ctx context.Context, source, externalID string) (bool, error)

	// RecentPrices returns up to maxSamples prices for the segment key,
	// newest first, restricted to the trailing window.
	RecentPrices(ctx context.Context, key models.SegmentKey, windowDays, maxSamples int) ([]int, error)

	// DistinctSegmentKeys enumerates every segment currently present for the
	// source.
	DistinctSegmentKeys(ctx context.Context, source string) ([]models.SegmentKey, error)

	// ApplyBaseline replaces the stored median and every listing's derived
	// savings for the key in one pass. Returns the number of rows touched.
	ApplyBaseline(ctx context.Context, key models.SegmentKey, median float64) (int64, error)

	ActiveSubscribers(ctx context.Context, source string) ([]models.Subscriber, error)

	Close()
}
