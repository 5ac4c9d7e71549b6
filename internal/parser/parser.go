package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/spacedrep/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	conceptPrefix  = "C:"
	tagsPrefix     = "T:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingConcept
	readingTags
)

// entry accumulates the lines of one card while scanning.
type entry struct {
	line     int
	question []string
	answer   []string
	concept  []string
	tags     []string
}

func (e *entry) empty() bool {
	return len(e.question) == 0 && len(e.answer) == 0 && len(e.concept) == 0
}

// ParseFile reads a deck file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck from an io.Reader and extracts all cards.
//
// A fact is a "Q:" block followed by an "A:" block; a concept is a "C:" block.
// Blocks may span several lines. An optional "T:" line holds comma separated
// tags for the current card, and "---" ends a card explicitly.
//
// The returned cards carry only content and tags. Entries that do not form
// valid content are skipped and reported together in the returned error,
// alongside the cards that did parse.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var errs []error
	var current entry
	currentState := seeking
	lineNo := 0

	finishCard := func() {
		if !current.empty() {
			content, err := toContent(current)
			if err != nil {
				errs = append(errs, fmt.Errorf("card at line %d: %w", current.line, err))
			} else {
				cards = append(cards, domain.Card{Content: content, Tags: domain.NormalizeTags(current.tags)})
			}
		}
		current = entry{}
		currentState = seeking
	}

	startCard := func() {
		if !current.empty() {
			finishCard()
		}
		if current.line == 0 {
			current.line = lineNo
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		switch {
		case strings.TrimSpace(line) == separator:
			finishCard()
		case strings.HasPrefix(line, questionPrefix):
			startCard()
			currentState = readingQuestion
			current.question = append(current.question, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			if current.line == 0 {
				current.line = lineNo
			}
			currentState = readingAnswer
			current.answer = append(current.answer, trimPrefix(line, answerPrefix))
		case strings.HasPrefix(line, conceptPrefix):
			startCard()
			currentState = readingConcept
			current.concept = append(current.concept, trimPrefix(line, conceptPrefix))
		case strings.HasPrefix(line, tagsPrefix):
			currentState = readingTags
			current.tags = append(current.tags, strings.Split(trimPrefix(line, tagsPrefix), ",")...)
		default:
			switch currentState {
			case readingQuestion:
				current.question = append(current.question, line)
			case readingAnswer:
				current.answer = append(current.answer, line)
			case readingConcept:
				current.concept = append(current.concept, line)
			}
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, errors.Join(errs...)
}

func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

func toContent(e entry) (domain.Content, error) {
	join := func(lines []string) string {
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	if len(e.concept) > 0 && len(e.question) == 0 && len(e.answer) == 0 {
		return domain.NewConcept(join(e.concept))
	}
	return domain.NewFact(join(e.question), join(e.answer))
}
