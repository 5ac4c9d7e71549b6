// Package deck maps card operations onto the store and the scheduler.
// It owns identifier generation, the review clock and review history.
package deck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/spacedrep/internal/domain"
	"github.com/conorfennell/spacedrep/internal/fsrs"
	"github.com/conorfennell/spacedrep/internal/knol"
)

var (
	ErrCardNotFound   = errors.New("deck: card not found")
	ErrSourceNotFound = errors.New("deck: source not found")
	ErrInvalidSource  = errors.New("deck: invalid source")
)

// Store persists cards. Lookups return nil, nil when nothing matches.
type Store interface {
	InsertCard(ctx context.Context, card *domain.Card) error
	FindCardByID(ctx context.Context, id string) (*domain.Card, error)
	UpdateCard(ctx context.Context, card *domain.Card) error
	RecordReview(ctx context.Context, card *domain.Card, review domain.ReviewLog) error
	DeleteCardByID(ctx context.Context, id string) (bool, error)
	GetDueCards(ctx context.Context, now time.Time, limit int) ([]domain.Card, error)
	GetCards(ctx context.Context, tag string) ([]domain.Card, error)
}

// Service holds the dependencies for card operations.
type Service struct {
	store     Store
	scheduler *fsrs.Scheduler
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the source of review and creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces random UUIDs as card identifiers.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
func New(store Store, scheduler *fsrs.Scheduler, opts ...Option) *Service {
	s := &Service{
		store:     store,
		scheduler: scheduler,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scheduler returns the scheduler the service reviews with.
func (s *Service) Scheduler() *fsrs.Scheduler {
	return s.scheduler
}

// Now returns the current time at the store's millisecond precision.
func (s *Service) Now() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// AddCard creates a new card and stores it.
func (s *Service) AddCard(ctx context.Context, content domain.Content, tags []string) (*domain.Card, error) {
	return s.add(ctx, content, tags, nil)
}

// ImportCard creates a new card that belongs to an imported source.
func (s *Service) ImportCard(ctx context.Context, content domain.Content, tags []string, sourceID int64) (*domain.Card, error) {
	return s.add(ctx, content, tags, &sourceID)
}

func (s *Service) add(ctx context.Context, content domain.Content, tags []string, sourceID *int64) (*domain.Card, error) {
	card, err := s.scheduler.NewCard(s.newID(), content, tags, s.Now())
	if err != nil {
		return nil, err
	}
	card.Hash = knol.Hash(content)
	card.SourceID = sourceID
	if err := s.store.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	s.logger.Debug("card added", "id", card.ID, "type", card.Kind)
	return card, nil
}

// GetCard returns the card with the given ID or ErrCardNotFound.
func (s *Service) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	card, err := s.store.FindCardByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return card, nil
}

// RemoveCard deletes a card or returns ErrCardNotFound.
func (s *Service) RemoveCard(ctx context.Context, id string) error {
	ok, err := s.store.DeleteCardByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	s.logger.Debug("card removed", "id", id)
	return nil
}

// NextDue returns up to limit cards due for review, new cards first.
func (s *Service) NextDue(ctx context.Context, limit int) ([]domain.Card, error) {
	return s.store.GetDueCards(ctx, s.Now(), limit)
}

// ListCards returns every card, or those carrying tag when it is non-empty.
func (s *Service) ListCards(ctx context.Context, tag string) ([]domain.Card, error) {
	return s.store.GetCards(ctx, tag)
}

// Update describes changes to a card. Nil fields are left as they are.
// Content fields that do not belong to the card's kind are ignored.
type Update struct {
	Question *string
	Answer   *string
	Concept  *string
	Tags     []string // nil leaves tags unchanged
	Rating   *domain.Rating
}

// UpdateCard edits a card's content and tags and, when a rating is given,
// reviews it and appends the review to its history. Nothing is stored
// unless every step succeeds.
func (s *Service) UpdateCard(ctx context.Context, id string, u Update) (*domain.Card, error) {
	card, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := card.Content.Edit(u.Question, u.Answer, u.Concept)
	if err != nil {
		return nil, err
	}
	card.Content = content
	// An imported card keeps the hash of its deck entry so sync still
	// recognises it after a local edit.
	if card.SourceID == nil {
		card.Hash = knol.Hash(content)
	}
	if u.Tags != nil {
		card.Tags = domain.NormalizeTags(u.Tags)
	}

	if u.Rating == nil {
		if err := s.store.UpdateCard(ctx, card); err != nil {
			return nil, err
		}
		return card, nil
	}

	now := s.Now()
	if _, err := s.scheduler.Review(card, *u.Rating, now); err != nil {
		return nil, err
	}
	card.Due = card.Due.Truncate(time.Millisecond)
	review := domain.ReviewLog{Rating: *u.Rating, ReviewedAt: now}
	card.Reviews = append(card.Reviews, review)

	if err := s.store.RecordReview(ctx, card, review); err != nil {
		return nil, err
	}
	s.logger.Debug("card reviewed",
		"id", card.ID,
		"rating", u.Rating.String(),
		"state", card.State,
		"stability", card.Stability,
		"difficulty", card.Difficulty,
		"scheduled_days", card.ScheduledDays,
	)
	return card, nil
}

// Review rates a card. It is UpdateCard with only a rating.
func (s *Service) Review(ctx context.Context, id string, rating domain.Rating) (*domain.Card, error) {
	return s.UpdateCard(ctx, id, Update{Rating: &rating})
}

// Retrievability reports the modeled recall probability of card right now.
func (s *Service) Retrievability(card *domain.Card) float64 {
	return s.scheduler.Retrievability(card, s.Now())
}
