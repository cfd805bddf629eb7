package models

import (
	"errors"
	"time"
)

// ErrListingNotFound is returned by store lookups for unknown
// (source, external id) pairs.
var ErrListingNotFound = errors.New("listing not found")

// RawListing is one candidate extracted from a search-result page before
// classification. Price is in the source marketplace's currency.
type RawListing struct {
	ExternalID  string
	Title       string
	Description string
	Price       int
	URL         string
	Region      string
}

// Listing is a persisted advertisement, unique per (Source, ExternalID).
// MedianPrice and Savings are derived values and are fully replaced on every
// baseline recomputation.
type Listing struct {
	Source      string    `json:"source"`
	ExternalID  string    `json:"external_id"`
	Price       int       `json:"price"`
	Model       string    `json:"model"`
	City        string    `json:"city"`
	Capacity    string    `json:"capacity,omitempty"`
	URL         string    `json:"url"`
	MedianPrice float64   `json:"median_price,omitempty"`
	Savings     float64   `json:"savings,omitempty"`
	Notified    bool      `json:"notified"`
	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// ListingInput is the upsert payload for a listing.
type ListingInput struct {
	Source      string
	ExternalID  string
	Price       int
	Model       string
	City        string
	Capacity    string
	URL         string
	MedianPrice float64
	Savings     float64
}

// SegmentKey groups listings for baseline computation.
type SegmentKey struct {
	City   string
	Model  string
	Source string
}

// Subscriber is a read-only view of one interested user for a source.
// Preference fields are owned by the external command surface.
type Subscriber struct {
	UserID   int64
	City     string
	Model    string // optional model filter, empty = all models
	MaxPrice int    // optional price cap, 0 = unlimited
	Source   string
	Active   bool
}
