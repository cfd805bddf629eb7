package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body><div data-marker="item"><h3>iPhone 13</h3></div></body></html>`

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fixture)
	}))
	defer srv.Close()

	f := New(5*time.Second, 3, time.Millisecond, nil, zerolog.Nop())
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(`div[data-marker='item']`).Length())
}

func TestFetchRetriesRateLimitThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, fixture)
	}))
	defer srv.Close()

	f := New(5*time.Second, 3, time.Millisecond, nil, zerolog.Nop())
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1, doc.Find("h3").Length())
}

func TestFetchRotatesUserAgents(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.UserAgent())
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(5*time.Second, 2, time.Millisecond, nil, zerolog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1])
}

func TestFetchClientErrorFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(5*time.Second, 3, time.Millisecond, nil, zerolog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "non-retryable status must not be retried")

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, 1, fe.Attempts)
}

func TestFetchExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(5*time.Second, 3, time.Millisecond, nil, zerolog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Equal(t, 3, fe.Attempts)
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fixture)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(5*time.Second, 3, time.Millisecond, nil, zerolog.Nop())
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(429, nil))
	assert.True(t, retryable(403, nil))
	assert.True(t, retryable(500, nil))
	assert.True(t, retryable(503, nil))
	assert.False(t, retryable(404, nil))
	assert.False(t, retryable(400, nil))
	assert.True(t, retryable(0, fmt.Errorf("connection refused")))
	assert.False(t, retryable(0, nil))
}
