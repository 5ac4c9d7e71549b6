package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/domain"
)

type addCardRequest struct {
	CardType domain.Kind `json:"card_type"`
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Concept  string      `json:"concept"`
	Tags     []string    `json:"tags"`
}

type updateCardRequest struct {
	Question *string        `json:"question"`
	Answer   *string        `json:"answer"`
	Concept  *string        `json:"concept"`
	Tags     []string       `json:"tags"`
	Rating   *domain.Rating `json:"rating"`
}

type reviewRequest struct {
	Rating domain.Rating `json:"rating"`
}

type cardResponse struct {
	*domain.Card
	Retrievability float64 `json:"retrievability"`
}

type listResponse struct {
	Count int           `json:"count"`
	Cards []domain.Card `json:"cards"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleListCards handles GET /cards?tag=
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.cards.ListCards(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(cards), Cards: nonNil(cards)})
}

// handleDueCards handles GET /cards/due?limit=
func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	cards, err := s.cards.NextDue(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(cards), Cards: nonNil(cards)})
}

// handleAddCard handles POST /cards
func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var content domain.Content
	var err error
	switch req.CardType {
	case domain.Fact:
		content, err = domain.NewFact(req.Question, req.Answer)
	case domain.Concept:
		content, err = domain.NewConcept(req.Concept)
	default:
		err = fmt.Errorf("%w: card_type must be %q or %q", domain.ErrInvalidContent, domain.Fact, domain.Concept)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	card, err := s.cards.AddCard(r.Context(), content, req.Tags)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/cards/"+card.ID)
	writeJSON(w, http.StatusCreated, card)
}

// handleGetCard handles GET /cards/{id}
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.cards.GetCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardResponse{Card: card, Retrievability: s.cards.Retrievability(card)})
}

// handleUpdateCard handles PATCH /cards/{id}
func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req updateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	card, err := s.cards.UpdateCard(r.Context(), chi.URLParam(r, "id"), deck.Update{
		Question: req.Question,
		Answer:   req.Answer,
		Concept:  req.Concept,
		Tags:     req.Tags,
		Rating:   req.Rating,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleReviewCard handles POST /cards/{id}/review
func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	card, err := s.cards.Review(r.Context(), chi.URLParam(r, "id"), req.Rating)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleDeleteCard handles DELETE /cards/{id}
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.cards.RemoveCard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(cards []domain.Card) []domain.Card {
	if cards == nil {
		return []domain.Card{}
	}
	return cards
}
