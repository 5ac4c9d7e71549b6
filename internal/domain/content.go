package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidContent is returned when card content does not match its kind.
var ErrInvalidContent = errors.New("domain: invalid card content")

// Kind tags which content variant a card carries.
type Kind string

const (
	Fact    Kind = "fact"
	Concept Kind = "concept"
)

// Content is the body of a card. A fact has a question and an answer;
// a concept has only a concept description. Use NewFact, NewConcept or
// NewContent so that the fields always match the kind.
type Content struct {
	Kind     Kind   `json:"card_type" validate:"required,oneof=fact concept"`
	Question string `json:"question,omitempty" validate:"required_if=Kind fact,excluded_if=Kind concept"`
	Answer   string `json:"answer,omitempty" validate:"required_if=Kind fact,excluded_if=Kind concept"`
	Concept  string `json:"concept,omitempty" validate:"required_if=Kind concept,excluded_if=Kind fact"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewFact returns question/answer content.
func NewFact(question, answer string) (Content, error) {
	return NewContent(Fact, question, answer, "")
}

// NewConcept returns concept content.
func NewConcept(concept string) (Content, error) {
	return NewContent(Concept, "", "", concept)
}

// NewContent builds and validates content of the given kind.
func NewContent(kind Kind, question, answer, concept string) (Content, error) {
	c := Content{Kind: kind, Question: question, Answer: answer, Concept: concept}
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	return c, nil
}

// Validate checks that exactly the fields belonging to the kind are set.
func (c Content) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s cards: field %s failed %q", ErrInvalidContent, c.Kind, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return nil
}

// Edit applies the non-nil replacements that belong to the content's kind
// and returns the validated result. Replacements for the other kind are ignored.
func (c Content) Edit(question, answer, concept *string) (Content, error) {
	out := c
	switch c.Kind {
	case Fact:
		if question != nil {
			out.Question = *question
		}
		if answer != nil {
			out.Answer = *answer
		}
	case Concept:
		if concept != nil {
			out.Concept = *concept
		}
	}
	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}
