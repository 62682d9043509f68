// Package api serves the optional status endpoints: liveness, run
// statistics and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsFunc supplies the /stats payload.
type StatsFunc func(ctx context.Context) (any, error)

type Server struct {
	server *http.Server
	logger *slog.Logger
}

func NewServer(addr string, registry *prometheus.Registry, stats StatsFunc) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	logger := slog.Default().With("component", "api")

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if stats == nil {
			http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
			return
		}
		payload, err := stats(r.Context())
		if err != nil {
			logger.Error("stats handler failed", "error", err)
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})

	if registry != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
