// Package api is the admin surface: health, accumulated stats and on-demand
// baseline recalculation, with interactive API docs served at the root.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	scalargo "github.com/bdpiprava/scalar-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"dealhound/pkg/classify"
	"dealhound/pkg/counters"
)

// Pipeline is the slice of the orchestrator the admin API needs.
type Pipeline interface {
	Sources() []string
	RefreshBaselines(ctx context.Context, source string) error
}

type Server struct {
	pipeline Pipeline
	counters *counters.Counters
	specDir  string
	log      zerolog.Logger
}

func NewServer(p Pipeline, cnt *counters.Counters, specDir string, log zerolog.Logger) *Server {
	return &Server{
		pipeline: p,
		counters: cnt,
		specDir:  specDir,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDocs)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/models", s.handleModels)
	r.Post("/refresh/{source}", s.handleRefresh)

	return r
}

// Serve runs the admin server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("admin api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": s.pipeline.Sources(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]map[string]string{}
	for _, source := range s.pipeline.Sources() {
		snap, err := s.counters.Snapshot(r.Context(), source)
		if err != nil {
			WriteInternalServerError(w, err, r.URL.Path)
			return
		}
		out[source] = snap
	}
	writeJSON(w, http.StatusOK, out)
}

// handleModels lists the recognized model labels, most specific first, for
// the external command surface to offer as a picker.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": classify.Labels()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	known := false
	for _, name := range s.pipeline.Sources() {
		if name == source {
			known = true
			break
		}
	}
	if !known {
		WriteNotFound(w, fmt.Sprintf("unknown source %q", source), r.URL.Path)
		return
	}

	if err := s.pipeline.RefreshBaselines(r.Context(), source); err != nil {
		WriteInternalServerError(w, err, r.URL.Path)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"source": source,
		"status": "refreshed",
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(s.specDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Dealhound Admin API"),
		),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
