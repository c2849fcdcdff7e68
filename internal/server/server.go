// Package server provides the daemon's status HTTP endpoint. It is a
// read-only surface: rotation is driven entirely by the engine loop,
// and configuration stays owned by the interactive UI.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Issei-177013/Cloudflare-Utils/internal/engine"
)

// Server serves engine status over HTTP.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New creates a status server listening on addr.
func New(addr string, eng *engine.Engine, log zerolog.Logger) *Server {
	log = log.With().Str("component", "server").Logger()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(eng.Status()); err != nil {
			log.Error().Err(err).Msg("failed to encode status")
		}
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("status endpoint listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
