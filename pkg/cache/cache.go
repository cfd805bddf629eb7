// Package cache is a small sqlite-backed TTL cache for fetched search pages.
// Subscribers watching the same city hit the same search URLs every cycle;
// caching the raw page for roughly one cycle keeps requests to the
// marketplaces polite without changing pipeline behavior.
package cache

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pages (
			url TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			fetched_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, ttl: ttl}, nil
}

func (c *Cache) Get(url string) (string, bool) {
	var body string
	var fetchedAt time.Time

	err := c.db.QueryRow(
		`SELECT body, fetched_at FROM pages WHERE url = ?`, url,
	).Scan(&body, &fetchedAt)
	if err != nil {
		return "", false
	}
	if time.Since(fetchedAt) > c.ttl {
		return "", false
	}
	return body, true
}

func (c *Cache) Set(url, body string) error {
	_, err := c.db.Exec(
		`INSERT INTO pages (url, body, fetched_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(url)
		 DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		url, body, time.Now(),
	)
	return err
}

// Prune removes expired rows; main runs it on a TTL-period ticker.
func (c *Cache) Prune() error {
	_, err := c.db.Exec(`DELETE FROM pages WHERE fetched_at < ?`, time.Now().Add(-c.ttl))
	return err
}

func (c *Cache) Close() error {
	return c.db.Close()
}
