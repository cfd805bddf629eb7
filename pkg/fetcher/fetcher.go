// Package fetcher retrieves marketplace search pages. It rotates browser
// user agents, retries transient failures with exponential backoff and can
// serve recently fetched pages out of a sqlite cache.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"dealhound/pkg/cache"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// Error reports a fetch that could not produce a usable page.
type Error struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Fetcher struct {
	mu      sync.Mutex
	c       *colly.Collector
	cache   *cache.Cache
	log     zerolog.Logger
	retries int
	backoff time.Duration

	agentIdx int

	// captured by the collector callbacks during a Visit
	body   []byte
	status int
}

// New builds a Fetcher. cache may be nil to disable page caching.
func New(timeout time.Duration, retries int, backoff time.Duration, pageCache *cache.Cache, log zerolog.Logger) *Fetcher {
	f := &Fetcher{
		cache:   pageCache,
		log:     log.With().Str("component", "fetcher").Logger(),
		retries: retries,
		backoff: backoff,
	}
	if f.retries < 1 {
		f.retries = 1
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	})
	c.OnResponse(func(r *colly.Response) {
		f.body = r.Body
		f.status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			f.status = r.StatusCode
		}
	})

	f.c = c
	return f
}

func (f *Fetcher) nextAgent() string {
	ua := userAgents[f.agentIdx%len(userAgents)]
	f.agentIdx++
	return ua
}

// Fetch downloads url and parses it into a document. Transport errors and
// 429/403/5xx responses are retried with doubling backoff; other client
// errors fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if f.cache != nil {
		if body, ok := f.cache.Get(url); ok {
			f.log.Debug().Str("url", url).Msg("page cache hit")
			return goquery.NewDocumentFromReader(strings.NewReader(body))
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= f.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{URL: url, Attempts: attempt - 1, Err: err}
		}

		f.body = nil
		f.status = 0
		f.c.UserAgent = f.nextAgent()

		err := f.c.Visit(url)
		lastErr = err
		lastStatus = f.status

		if err == nil && f.status >= 200 && f.status < 300 && len(f.body) > 0 {
			if f.cache != nil {
				if cerr := f.cache.Set(url, string(f.body)); cerr != nil {
					f.log.Warn().Err(cerr).Str("url", url).Msg("page cache write failed")
				}
			}
			return goquery.NewDocumentFromReader(bytes.NewReader(f.body))
		}

		if !retryable(f.status, err) {
			return nil, &Error{URL: url, StatusCode: f.status, Attempts: attempt, Err: err}
		}

		if attempt < f.retries {
			delay := f.backoff << (attempt - 1)
			f.log.Warn().
				Str("url", url).
				Int("status", f.status).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("fetch failed, retrying")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{URL: url, StatusCode: f.status, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}

	return nil, &Error{URL: url, StatusCode: lastStatus, Attempts: f.retries, Err: lastErr}
}

// retryable reports whether a response is worth another attempt. Blocks
// (403), rate limits (429) and server errors clear up on their own often
// enough; remaining 4xx codes never do.
func retryable(status int, err error) bool {
	if status == 0 {
		return err != nil
	}
	if status == 429 || status == 403 {
		return true
	}
	return status >= 500
}
