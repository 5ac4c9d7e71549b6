package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/spacedrep/internal/domain"
)

// Scheduler computes review intervals with the FSRS-4.5 model.
// It holds only immutable configuration and is safe for concurrent use.
type Scheduler struct {
	algo              algo
	enableFuzz        bool
	maximumInterval   int
	desiredRetention  float64
	initialStability  float64
	initialDifficulty float64
	rng               RandSource
}

// NewScheduler creates a Scheduler from cfg.
// Zero-value fields are filled with defaults; invalid values return ErrInvalidConfig.
func NewScheduler(cfg Config) (*Scheduler, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		algo:              algo{w: cfg.Weights},
		enableFuzz:        cfg.EnableFuzz,
		maximumInterval:   cfg.MaximumInterval,
		desiredRetention:  cfg.DesiredRetention,
		initialStability:  cfg.InitialStability,
		initialDifficulty: cfg.InitialDifficulty,
		rng:               cfg.Fuzz,
	}, nil
}

// Weights returns the weight vector in use.
func (s *Scheduler) Weights() [19]float64 {
	return s.algo.w
}

// NewCard creates an unreviewed card that is due at now.
func (s *Scheduler) NewCard(id string, content domain.Content, tags []string, now time.Time) (*domain.Card, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return &domain.Card{
		ID:         id,
		Content:    content,
		Tags:       domain.NormalizeTags(tags),
		CreatedAt:  now,
		State:      domain.New,
		Stability:  s.initialStability,
		Difficulty: s.initialDifficulty,
		Due:        now,
		Reviews:    []domain.ReviewLog{},
	}, nil
}

// Review applies rating to card at time now and returns the same card with
// its scheduling state updated in place. It does not append a review log;
// that is up to the caller. On error the card is left untouched.
func (s *Scheduler) Review(card *domain.Card, rating domain.Rating, now time.Time) (*domain.Card, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if err := validateCard(card); err != nil {
		return nil, err
	}

	prevStability := card.Stability
	prevDifficulty := card.Difficulty

	var elapsedDays float64
	if card.LastReview != nil {
		elapsedDays = math.Max(0, now.Sub(*card.LastReview).Hours()/24)
	}
	card.ElapsedDays = elapsedDays
	reviewed := now
	card.LastReview = &reviewed
	card.Reps++

	wasNew := card.State == domain.New
	switch {
	case wasNew:
		if rating < domain.Easy {
			card.State = domain.Learning
		} else {
			card.State = domain.Review
		}
	case rating == domain.Again:
		card.State = domain.Relearning
		card.Lapses++
	}

	if wasNew || card.Reps == 1 {
		card.Stability = s.algo.initStability(rating)
		card.Difficulty = s.algo.initDifficulty(rating)
	} else {
		card.Difficulty = s.algo.nextDifficulty(prevDifficulty, rating)
		card.Stability = s.algo.nextStability(prevDifficulty, prevStability, elapsedDays, rating)
	}

	interval := s.algo.nextInterval(card.Stability, s.desiredRetention, rating, s.maximumInterval)
	if s.enableFuzz && card.State == domain.Review {
		interval = applyFuzz(interval, s.maximumInterval, s.rng)
	}
	card.ScheduledDays = interval
	card.Due = now.Add(days(interval))

	return card, nil
}

// Preview returns the outcome of each rating applied to a copy of card.
// The card itself is not modified.
func (s *Scheduler) Preview(card *domain.Card, now time.Time) (map[domain.Rating]domain.Card, error) {
	out := make(map[domain.Rating]domain.Card, 4)
	for _, r := range []domain.Rating{domain.Again, domain.Hard, domain.Good, domain.Easy} {
		c, err := s.Review(card.Clone(), r, now)
		if err != nil {
			return nil, err
		}
		out[r] = *c
	}
	return out, nil
}

// Retrievability returns the modeled probability of recalling card at now.
// Cards that were never reviewed return 0.
func (s *Scheduler) Retrievability(card *domain.Card, now time.Time) float64 {
	if card == nil || card.LastReview == nil || card.Stability <= 0 {
		return 0
	}
	elapsed := math.Max(0, now.Sub(*card.LastReview).Hours()/24)
	return s.algo.retrievability(elapsed, card.Stability)
}

// validateCard rejects scheduling state the formulas cannot work with.
func validateCard(c *domain.Card) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil card", ErrInvalidCardState)
	case !c.State.IsValid():
		return fmt.Errorf("%w: unknown state %q", ErrInvalidCardState, c.State)
	case math.IsNaN(c.Stability) || math.IsInf(c.Stability, 0) || c.Stability <= 0:
		return fmt.Errorf("%w: stability %v must be positive", ErrInvalidCardState, c.Stability)
	case math.IsNaN(c.Difficulty) || math.IsInf(c.Difficulty, 0):
		return fmt.Errorf("%w: difficulty %v is not finite", ErrInvalidCardState, c.Difficulty)
	case c.Reps < 0 || c.Lapses < 0:
		return fmt.Errorf("%w: negative counters reps=%d lapses=%d", ErrInvalidCardState, c.Reps, c.Lapses)
	case (c.State == domain.New) != (c.Reps == 0):
		return fmt.Errorf("%w: state %s with %d reps", ErrInvalidCardState, c.State, c.Reps)
	}
	return nil
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(24*time.Hour))
}
