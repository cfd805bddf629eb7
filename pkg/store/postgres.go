package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealhound/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id BIGSERIAL PRIMARY KEY,
	source VARCHAR(20) NOT NULL,
	external_id VARCHAR(100) NOT NULL,
	price INTEGER NOT NULL,
	model VARCHAR(100) NOT NULL,
	city VARCHAR(100) NOT NULL,
	capacity VARCHAR(50),
	url TEXT NOT NULL,
	median_price DECIMAL(12, 2) DEFAULT 0,
	savings DECIMAL(12, 2) DEFAULT 0,
	notified BOOLEAN DEFAULT FALSE,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_segment ON listings (source, city, model);
CREATE INDEX IF NOT EXISTS idx_listings_first_seen ON listings (first_seen);

CREATE TABLE IF NOT EXISTS subscribers (
	user_id BIGINT PRIMARY KEY,
	city VARCHAR(100),
	model VARCHAR(100),
	max_price INTEGER,
	source VARCHAR(20) NOT NULL DEFAULT 'avito',
	is_active BOOLEAN DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers (source, is_active);
`

// Postgres implements Store on a pgx connection pool. The subscribers table
// is written by the command surface; this process only reads it.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) UpsertListing(ctx context.Context, in models.ListingInput) (*models.Listing, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO listings (source, external_id, price, model, city, capacity, url, median_price, savings)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (source, external_id) DO UPDATE SET
			price = EXCLUDED.price,
			capacity = EXCLUDED.capacity,
			median_price = EXCLUDED.median_price,
			savings = EXCLUDED.savings,
			last_updated = NOW()
		RETURNING source, external_id, price, model, city, COALESCE(capacity, ''), url,
			median_price, savings, notified, first_seen, last_updated`,
		in.Source, in.ExternalID, in.Price, in.Model, in.City, in.Capacity, in.URL,
		in.MedianPrice, in.Savings,
	)

	var l models.Listing
	err := row.Scan(&l.Source, &l.ExternalID, &l.Price, &l.Model, &l.City, &l.Capacity,
		&l.URL, &l.MedianPrice, &l.Savings, &l.Notified, &l.FirstSeen, &l.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("upsert listing %s/%s: %w", in.Source, in.ExternalID, err)
	}
	return &l, nil
}

func (p *Postgres) MarkNotified(ctx context.Context, source, externalID string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE listings SET notified = TRUE, last_updated = NOW()
		WHERE source = $1 AND external_id = $2`, source, externalID)
	if err != nil {
		return fmt.Errorf("mark notified %s/%s: %w", source, externalID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrListingNotFound
	}
	return nil
}

func (p *Postgres) IsNotified(ctx context.Context, source, externalID string) (bool, error) {
	var notified bool
	err := p.pool.QueryRow(ctx, `
		SELECT notified FROM listings WHERE source = $1 AND external_id = $2`,
		source, externalID).Scan(&notified)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is notified %s/%s: %w", source, externalID, err)
	}
	return notified, nil
}

func (p *Postgres) Exists(ctx context.Context, source, externalID string) (bool, error) {
	var one int
	err := p.pool.QueryRow(ctx, `
		SELECT 1 FROM listings WHERE source = $1 AND external_id = $2`,
		source, externalID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s/%s: %w", source, externalID, err)
	}
	return true, nil
}

func (p *Postgres) RecentPrices(ctx context.Context, key models.SegmentKey, windowDays, maxSamples int) ([]int, error) {
	threshold := time.Now().AddDate(0, 0, -windowDays)
	rows, err := p.pool.Query(ctx, `
		SELECT price FROM listings
		WHERE source = $1 AND city = $2 AND model = $3 AND first_seen >= $4
		ORDER BY first_seen DESC
		LIMIT $5`,
		key.Source, key.City, key.Model, threshold, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("recent prices %v: %w", key, err)
	}
	defer rows.Close()

	var prices []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (p *Postgres) DistinctSegmentKeys(ctx context.Context, source string) ([]models.SegmentKey, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT city, model FROM listings WHERE source = $1`, source)
	if err != nil {
		return nil, fmt.Errorf("distinct segment keys %s: %w", source, err)
	}
	defer rows.Close()

	var keys []models.SegmentKey
	for rows.Next() {
		k := models.SegmentKey{Source: source}
		if err := rows.Scan(&k.City, &k.Model); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *Postgres) ApplyBaseline(ctx context.Context, key models.SegmentKey, median float64) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE listings
		SET median_price = $1, savings = $1 - price, last_updated = NOW()
		WHERE source = $2 AND city = $3 AND model = $4`,
		median, key.Source, key.City, key.Model)
	if err != nil {
		return 0, fmt.Errorf("apply baseline %v: %w", key, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) ActiveSubscribers(ctx context.Context, source string) ([]models.Subscriber, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT user_id, COALESCE(city, ''), COALESCE(model, ''), COALESCE(max_price, 0), source, is_active
		FROM subscribers
		WHERE source = $1 AND is_active = TRUE
		ORDER BY user_id`, source)
	if err != nil {
		return nil, fmt.Errorf("active subscribers %s: %w", source, err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.UserID, &s.City, &s.Model, &s.MaxPrice, &s.Source, &s.Active); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (p *Postgres) Close() {
	p.pool.Close()
}
