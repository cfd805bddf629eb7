package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealhound/pkg/counters"
)

type stubPipeline struct {
	refreshed []string
	fail      bool
}

func (s *stubPipeline) Sources() []string { return []string{"avito", "kufar"} }

func (s *stubPipeline) RefreshBaselines(_ context.Context, source string) error {
	if s.fail {
		return fmt.Errorf("boom")
	}
	s.refreshed = append(s.refreshed, source)
	return nil
}

func newTestServer(p *stubPipeline) *Server {
	return NewServer(p, counters.New("", "", zerolog.Nop()), "./", zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubPipeline{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status  string   `json:"status"`
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"avito", "kufar"}, body.Sources)
}

func TestStatsWithDisabledCounters(t *testing.T) {
	srv := newTestServer(&stubPipeline{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body, "avito")
	assert.Contains(t, body, "kufar")
}

func TestModels(t *testing.T) {
	srv := newTestServer(&stubPipeline{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/models", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Models []string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Models, "iPhone 15 Pro Max")
	assert.Contains(t, body.Models, "iPhone SE")
}

func TestRefreshKnownSource(t *testing.T) {
	p := &stubPipeline{}
	srv := newTestServer(p)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh/avito", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"avito"}, p.refreshed)
}

func TestRefreshUnknownSourceIsProblemJSON(t *testing.T) {
	srv := newTestServer(&stubPipeline{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh/ebay", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd))
	assert.Equal(t, http.StatusNotFound, pd.Status)
	assert.Equal(t, "about:blank", pd.Type)
	assert.Contains(t, pd.Detail, "ebay")
}

func TestRefreshFailureIsProblemJSON(t *testing.T) {
	srv := newTestServer(&stubPipeline{fail: true})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh/kufar", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd))
	assert.Equal(t, "boom", pd.Detail)
}
