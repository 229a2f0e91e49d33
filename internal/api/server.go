package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/feed"
)

type Server struct {
	router    *chi.Mux
	port      int
	watches   *feed.Manager
	projector *activity.Projector
	startedAt time.Time
	http      *http.Server
}

func NewServer(port int, apiToken string, watches *feed.Manager, projector *activity.Projector) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		watches:   watches,
		projector: projector,
		startedAt: time.Now().UTC(),
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/scribe/status", s.status)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Get("/transcripts/events", s.transcriptEvents)
		r.Get("/transcripts/activity", s.transcriptActivity)

		r.Route("/watches", func(r chi.Router) {
			r.Get("/", s.listWatches)
			r.Post("/", s.startWatch)
			r.Get("/{id}", s.getWatch)
			r.Delete("/{id}", s.stopWatch)
			r.Get("/{id}/events", s.watchEvents)
		})
	})

	return s
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":          "scribe",
		"status":         "watching",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if s.watches != nil {
		body["watches_running"] = s.watches.Running()
		body["watches_total"] = len(s.watches.List())
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
