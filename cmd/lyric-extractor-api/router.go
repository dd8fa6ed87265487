// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cjs1301/lyric-extractor/cmd/lyric-extractor-api/handlers"
	"github.com/cjs1301/lyric-extractor/cmd/lyric-extractor-api/middleware"
	"github.com/cjs1301/lyric-extractor/internal/config"
	"github.com/cjs1301/lyric-extractor/internal/observability"
	"github.com/cjs1301/lyric-extractor/pkg/extractor"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, client *extractor.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware. No request timeout here: extraction streams
	// can legitimately run for minutes, bounded by the server's
	// WriteTimeout instead.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"lyric-extractor"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	extractHandler := handlers.NewExtractHandler(logger, client, cfg.Server.MaxUploadBytes)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/lyrics", func(r chi.Router) {
			r.Post("/extract", extractHandler.Extract)
		})
	})

	return r
}
