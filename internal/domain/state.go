package domain

// State is the lifecycle stage of a card.
type State string

const (
	New        State = "new"
	Learning   State = "learning"
	Review     State = "review"
	Relearning State = "relearning"
)

// IsValid reports whether s is one of the four known states.
func (s State) IsValid() bool {
	switch s {
	case New, Learning, Review, Relearning:
		return true
	}
	return false
}
