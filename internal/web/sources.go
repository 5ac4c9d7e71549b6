package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/spacedrep/internal/storage"
	"github.com/conorfennell/spacedrep/internal/sync"
)

type addSourceRequest struct {
	Path string `json:"path"`
}

// handleListSources handles GET /sources
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.syncer.ListSources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// handleAddSource handles POST /sources
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "path cannot be empty")
		return
	}
	source, err := s.syncer.AddSource(r.Context(), req.Path)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

// handleDeleteSource handles DELETE /sources/{id}
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid source ID")
		return
	}
	if err := s.syncer.RemoveSource(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePostSync runs a sync of every source in the foreground.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	results, err := s.syncer.RunSync(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []sync.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
