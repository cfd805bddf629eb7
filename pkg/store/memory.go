package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"dealhound/pkg/models"
)

// Memory is an in-memory Store used by tests and local runs without a
// database. Behavior mirrors the Postgres implementation.
type Memory struct {
	mu          sync.RWMutex
	listings    map[[2]string]*models.Listing // (source, externalID)
	order       [][2]string                   // insertion order, oldest first
	subscribers []models.Subscriber
}

func NewMemory() *Memory {
	return &Memory{listings: make(map[[2]string]*models.Listing)}
}

func (m *Memory) UpsertListing(_ context.Context, in models.ListingInput) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := [2]string{in.Source, in.ExternalID}
	now := time.Now()

	if l, ok := m.listings[k]; ok {
		l.Price = in.Price
		l.Capacity = in.Capacity
		l.MedianPrice = in.MedianPrice
		l.Savings = in.Savings
		l.LastUpdated = now
		cp := *l
		return &cp, nil
	}

	l := &models.Listing{
		Source:      in.Source,
		ExternalID:  in.ExternalID,
		Price:       in.Price,
		Model:       in.Model,
		City:        in.City,
		Capacity:    in.Capacity,
		URL:         in.URL,
		MedianPrice: in.MedianPrice,
		Savings:     in.Savings,
		FirstSeen:   now,
		LastUpdated: now,
	}
	m.listings[k] = l
	m.order = append(m.order, k)
	cp := *l
	return &cp, nil
}

func (m *Memory) MarkNotified(_ context.Context, source, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[[2]string{source, externalID}]
	if !ok {
		return models.ErrListingNotFound
	}
	l.Notified = true
	return nil
}

func (m *Memory) IsNotified(_ context.Context, source, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[[2]string{source, externalID}]
	return ok && l.Notified, nil
}

func (m *Memory) Exists(_ context.Context, source, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.listings[[2]string{source, externalID}]
	return ok, nil
}

func (m *Memory) RecentPrices(_ context.Context, key models.SegmentKey, windowDays, maxSamples int) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	threshold := time.Now().AddDate(0, 0, -windowDays)
	type sample struct {
		price int
		seen  time.Time
	}
	var matched []sample
	for _, l := range m.listings {
		if l.Source == key.Source && l.City == key.City && l.Model == key.Model && !l.FirstSeen.Before(threshold) {
			matched = append(matched, sample{l.Price, l.FirstSeen})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seen.After(matched[j].seen) })
	if len(matched) > maxSamples {
		matched = matched[:maxSamples]
	}

	prices := make([]int, len(matched))
	for i, s := range matched {
		prices[i] = s.price
	}
	return prices, nil
}

func (m *Memory) DistinctSegmentKeys(_ context.Context, source string) ([]models.SegmentKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[models.SegmentKey]struct{})
	var keys []models.SegmentKey
	for _, k := range m.order {
		l := m.listings[k]
		if l.Source != source {
			continue
		}
		sk := models.SegmentKey{City: l.City, Model: l.Model, Source: source}
		if _, ok := seen[sk]; ok {
			continue
		}
		seen[sk] = struct{}{}
		keys = append(keys, sk)
	}
	return keys, nil
}

func (m *Memory) ApplyBaseline(_ context.Context, key models.SegmentKey, median float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, l := range m.listings {
		if l.Source == key.Source && l.City == key.City && l.Model == key.Model {
			l.MedianPrice = median
			l.Savings = median - float64(l.Price)
			l.LastUpdated = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) ActiveSubscribers(_ context.Context, source string) ([]models.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var subs []models.Subscriber
	for _, s := range m.subscribers {
		if s.Source == source && s.Active {
			subs = append(subs, s)
		}
	}
	return subs, nil
}

// AddSubscriber seeds a subscriber; tests and local runs stand in for the
// command surface here.
func (m *Memory) AddSubscriber(s models.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, s)
}

// Listing returns a copy of a stored listing, for assertions.
func (m *Memory) Listing(source, externalID string) (models.Listing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[[2]string{source, externalID}]
	if !ok {
		return models.Listing{}, false
	}
	return *l, true
}

// Len reports the number of stored listings.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings)
}

func (m *Memory) Close() {}
