package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/conorfennell/spacedrep/internal/domain"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedKind  domain.Kind
		expectedQ     string
		expectedA     string
		expectedC     string
		expectedTags  []string
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: What is the capital of France?\nA: Paris",
			expectedCards: 1,
			expectedKind:  domain.Fact,
			expectedQ:     "What is the capital of France?",
			expectedA:     "Paris",
			expectedTags:  []string{},
		},
		{
			name:          "Concept",
			input:         "C: Goroutines are lightweight threads managed by the Go runtime.",
			expectedCards: 1,
			expectedKind:  domain.Concept,
			expectedC:     "Goroutines are lightweight threads managed by the Go runtime.",
			expectedTags:  []string{},
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expectedCards: 1,
			expectedKind:  domain.Fact,
			expectedQ:     "What are the primary colors?",
			expectedA:     "Red\nBlue\nYellow",
			expectedTags:  []string{},
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "Fact then concept",
			input: `
Q: What is 1+1?
A: 2
C: Arithmetic
`,
			expectedCards: 2,
		},
		{
			name: "Tags and separator",
			input: `
Q: What is Go?
A: A statically typed, compiled programming language.
It was designed at Google.
T: go, languages , go
---
`,
			expectedCards: 1,
			expectedKind:  domain.Fact,
			expectedQ:     "What is Go?",
			expectedA:     "A statically typed, compiled programming language.\nIt was designed at Google.",
			expectedTags:  []string{"go", "languages"},
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no questions.",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expectedKind:  domain.Fact,
			expectedQ:     "Question",
			expectedA:     "Answer",
			expectedTags:  []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := strings.NewReader(tc.input)
			cards, err := Parse(r)
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(cards) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(cards))
			}

			if tc.expectedCards == 1 {
				card := cards[0]
				if card.Kind != tc.expectedKind {
					t.Errorf("Expected Kind to be '%s', but got '%s'", tc.expectedKind, card.Kind)
				}
				if card.Question != tc.expectedQ {
					t.Errorf("Expected Question to be '%s', but got '%s'", tc.expectedQ, card.Question)
				}
				if card.Answer != tc.expectedA {
					t.Errorf("Expected Answer to be '%s', but got '%s'", tc.expectedA, card.Answer)
				}
				if card.Concept != tc.expectedC {
					t.Errorf("Expected Concept to be '%s', but got '%s'", tc.expectedC, card.Concept)
				}
				if !reflect.DeepEqual(card.Tags, tc.expectedTags) {
					t.Errorf("Expected Tags to be %v, but got %v", tc.expectedTags, card.Tags)
				}
			}
		})
	}
}

func TestParseInvalidEntries(t *testing.T) {
	input := `
Q: Question without an answer
---
Q: Good question
A: Good answer
`
	cards, err := Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("Expected an error for the incomplete card")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected the error to name line 2, but got %v", err)
	}
	if len(cards) != 1 || cards[0].Question != "Good question" {
		t.Errorf("Expected the valid card to still be returned, but got %+v", cards)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.md")
	if err := os.WriteFile(path, []byte("Q: a\nA: b\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cards, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(cards) != 1 {
		t.Errorf("Expected 1 card, but got %d", len(cards))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
