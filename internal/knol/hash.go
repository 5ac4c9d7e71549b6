package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/spacedrep/internal/domain"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them. The kind leads so a fact and a concept with the same
// text never collide.
func Normalize(content domain.Content) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := []string{string(content.Kind)}
	switch content.Kind {
	case domain.Concept:
		parts = append(parts, normalizePart(content.Concept))
	default:
		parts = append(parts, normalizePart(content.Question), normalizePart(content.Answer))
	}

	// Joined with a newline so "question" and "answer" never run together.
	return strings.Join(parts, "\n")
}

// Hash normalizes the content and returns its SHA-256 hash as a hex string.
func Hash(content domain.Content) string {
	normalized := Normalize(content)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
