// Package web serves the card deck as a JSON API under /api/v1.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/domain"
	"github.com/conorfennell/spacedrep/internal/fsrs"
	"github.com/conorfennell/spacedrep/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	cards  *deck.Service
	syncer *sync.Syncer
	router chi.Router
}

// NewServer creates and configures a new server.
func NewServer(cards *deck.Service, syncer *sync.Syncer) *Server {
	s := &Server{
		cards:  cards,
		syncer: syncer,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Use a versioned path like /api/v1/...")
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/cards", func(cards chi.Router) {
			cards.Get("/", s.handleListCards)
			cards.Post("/", s.handleAddCard)
			cards.Get("/due", s.handleDueCards)
			cards.Get("/{id}", s.handleGetCard)
			cards.Patch("/{id}", s.handleUpdateCard)
			cards.Delete("/{id}", s.handleDeleteCard)
			cards.Post("/{id}/review", s.handleReviewCard)
		})
		api.Get("/sources", s.handleListSources)
		api.Post("/sources", s.handleAddSource)
		api.Delete("/sources/{id}", s.handleDeleteSource)
		api.Post("/sync", s.handlePostSync)
	})
}

// requestLogger logs each request with slog once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, deck.ErrCardNotFound), errors.Is(err, deck.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, fsrs.ErrInvalidRating),
		errors.Is(err, fsrs.ErrInvalidCardState),
		errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, deck.ErrInvalidSource):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
