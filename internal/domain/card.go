package domain

import (
	"slices"
	"strings"
	"time"
)

// Card is a single learning item together with its scheduling state.
// Content fields are flattened into the card when serialized.
type Card struct {
	ID string `json:"id"`
	Content
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"hash,omitempty"`
	SourceID  *int64    `json:"source_id,omitempty"`

	// Scheduling state. Only the scheduler writes these.
	State         State      `json:"state"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	Due           time.Time  `json:"due"`
	ElapsedDays   float64    `json:"elapsed_days"`
	ScheduledDays float64    `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	LastReview    *time.Time `json:"last_review"`

	Reviews []ReviewLog `json:"reviews"`
}

// ReviewLog records a single review event for a card.
type ReviewLog struct {
	Rating     Rating    `json:"rating"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// HasTag reports whether the card carries tag.
func (c *Card) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	out := *c
	out.Tags = slices.Clone(c.Tags)
	out.Reviews = slices.Clone(c.Reviews)
	if c.SourceID != nil {
		v := *c.SourceID
		out.SourceID = &v
	}
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return &out
}

// NormalizeTags trims, drops empties, deduplicates and sorts tags.
// Tags have set semantics so their order carries no meaning.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
