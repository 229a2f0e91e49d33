package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/scribe/internal/activity"
	"github.com/MikeSquared-Agency/scribe/internal/feed"
	"github.com/MikeSquared-Agency/scribe/internal/transcript"
)

// transcriptEvents handles GET /api/v1/transcripts/events?path=...
func (s *Server) transcriptEvents(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolvePath(w, r.URL.Query().Get("path"))
	if !ok {
		return
	}

	events, err := transcript.ReadAll(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":   path,
		"count":  len(events),
		"events": events,
	})
}

// transcriptActivity handles GET /api/v1/transcripts/activity?path=...&preview=N
func (s *Server) transcriptActivity(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolvePath(w, r.URL.Query().Get("path"))
	if !ok {
		return
	}

	projector := s.projector
	if v := r.URL.Query().Get("preview"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "preview must be a positive integer")
			return
		}
		projector = activity.NewProjector(n)
	}

	events, err := transcript.ReadAll(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries := projector.ProjectAll(events)

	writeJSON(w, http.StatusOK, map[string]any{
		"path":     path,
		"count":    len(entries),
		"activity": entries,
	})
}

func (s *Server) resolvePath(w http.ResponseWriter, raw string) (string, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return "", false
	}
	path, err := s.watches.ResolvePath(raw)
	if err != nil {
		if errors.Is(err, feed.ErrPathNotAllowed) {
			writeError(w, http.StatusForbidden, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return "", false
	}
	return path, true
}
