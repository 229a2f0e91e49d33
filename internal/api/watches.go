package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/scribe/internal/feed"
)

// listWatches handles GET /api/v1/watches
func (s *Server) listWatches(w http.ResponseWriter, r *http.Request) {
	watches := s.watches.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"watches": watches,
		"count":   len(watches),
	})
}

// startWatch handles POST /api/v1/watches
func (s *Server) startWatch(w http.ResponseWriter, r *http.Request) {
	var req feed.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	info, err := s.watches.Start(r.Context(), req)
	if err != nil {
		if errors.Is(err, feed.ErrPathNotAllowed) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// getWatch handles GET /api/v1/watches/{id}
func (s *Server) getWatch(w http.ResponseWriter, r *http.Request) {
	info, err := s.watches.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeWatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// stopWatch handles DELETE /api/v1/watches/{id}
func (s *Server) stopWatch(w http.ResponseWriter, r *http.Request) {
	info, err := s.watches.Stop(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeWatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// watchEvents handles GET /api/v1/watches/{id}/events
func (s *Server) watchEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := s.watches.Recent(id)
	if err != nil {
		writeWatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"watch_id": id,
		"count":    len(events),
		"events":   events,
	})
}

func writeWatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, feed.ErrWatchNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
