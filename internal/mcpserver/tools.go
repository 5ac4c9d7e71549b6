package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/domain"
	"github.com/conorfennell/spacedrep/internal/fsrs"
	"github.com/conorfennell/spacedrep/internal/sync"
)

func addCardTool() mcp.Tool {
	return mcp.NewTool("add_card",
		mcp.WithDescription("Add a new spaced repetition card"),
		mcp.WithString("card_type",
			mcp.Required(),
			mcp.Enum(string(domain.Fact), string(domain.Concept)),
			mcp.Description("Type of card: 'fact' for Q&A pairs, 'concept' for AI-generated questions"),
		),
		mcp.WithString("question", mcp.Description("Question text (required for fact cards)")),
		mcp.WithString("answer", mcp.Description("Answer text (required for fact cards)")),
		mcp.WithString("concept", mcp.Description("Concept description (required for concept cards)")),
		mcp.WithArray("tags",
			mcp.Description("Optional tags for organizing cards"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

func removeCardTool() mcp.Tool {
	return mcp.NewTool("remove_card",
		mcp.WithDescription("Remove a card by ID"),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("ID of the card to remove")),
	)
}

func nextDueTool() mcp.Tool {
	return mcp.NewTool("get_next_due_card",
		mcp.WithDescription("Get the next card due for review"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of due cards to return (default: 1)"),
			mcp.DefaultNumber(1),
			mcp.Min(1),
		),
	)
}

func updateCardTool() mcp.Tool {
	return mcp.NewTool("update_card",
		mcp.WithDescription("Update a card after review"),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("ID of the card to update")),
		mcp.WithNumber("rating",
			mcp.Description("Difficulty rating: 1=Again, 2=Hard, 3=Good, 4=Easy"),
			mcp.Min(1),
			mcp.Max(4),
		),
		mcp.WithString("question", mcp.Description("Updated question (optional)")),
		mcp.WithString("answer", mcp.Description("Updated answer (optional, for fact cards)")),
		mcp.WithString("concept", mcp.Description("Updated concept (optional, for concept cards)")),
	)
}

func getCardTool() mcp.Tool {
	return mcp.NewTool("get_card",
		mcp.WithDescription("Get a card with its scheduling state, review history and current recall probability"),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("ID of the card")),
	)
}

func listCardsTool() mcp.Tool {
	return mcp.NewTool("list_cards",
		mcp.WithDescription("List all cards, optionally only those with a tag"),
		mcp.WithString("tag", mcp.Description("Only return cards carrying this tag")),
	)
}

func importDeckTool() mcp.Tool {
	return mcp.NewTool("import_deck",
		mcp.WithDescription("Import cards from a directory of markdown decks or a git repository URL, then keep it as a synced source"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Local directory or git URL")),
	)
}

type handlers struct {
	cards  *deck.Service
	syncer *sync.Syncer
}

// cardSummary is the compact card shape returned by get_next_due_card and list_cards.
type cardSummary struct {
	ID       string       `json:"id"`
	CardType domain.Kind  `json:"card_type"`
	Due      time.Time    `json:"due"`
	State    domain.State `json:"state"`
	Reps     int          `json:"reps"`
	Lapses   int          `json:"lapses"`
	Question string       `json:"question,omitempty"`
	Answer   string       `json:"answer,omitempty"`
	Concept  string       `json:"concept,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
}

func summarize(c domain.Card) cardSummary {
	return cardSummary{
		ID:       c.ID,
		CardType: c.Kind,
		Due:      c.Due,
		State:    c.State,
		Reps:     c.Reps,
		Lapses:   c.Lapses,
		Question: c.Question,
		Answer:   c.Answer,
		Concept:  c.Concept,
		Tags:     c.Tags,
	}
}

func summarizeAll(cards []domain.Card) []cardSummary {
	out := make([]cardSummary, 0, len(cards))
	for _, c := range cards {
		out = append(out, summarize(c))
	}
	return out
}

func (h *handlers) addCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kind := domain.Kind(stringArg(args, "card_type"))

	var (
		content domain.Content
		err     error
	)
	switch kind {
	case domain.Fact:
		content, err = domain.NewFact(stringArg(args, "question"), stringArg(args, "answer"))
		if err != nil {
			return mcp.NewToolResultError("Fact cards require both question and answer"), nil
		}
	case domain.Concept:
		content, err = domain.NewConcept(stringArg(args, "concept"))
		if err != nil {
			return mcp.NewToolResultError("Concept cards require a concept description"), nil
		}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("card_type must be %q or %q", domain.Fact, domain.Concept)), nil
	}

	card, err := h.cards.AddCard(ctx, content, stringsArg(args, "tags"))
	if err != nil {
		return toolError("add_card", err), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"card_id": card.ID,
		"message": "Card added successfully",
	})
}

func (h *handlers) removeCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req.GetArguments(), "card_id")
	if id == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}
	if err := h.cards.RemoveCard(ctx, id); err != nil {
		return toolError("remove_card", err), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"message": "Card removed successfully",
	})
}

func (h *handlers) nextDue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 1
	if v, ok := numberArg(req.GetArguments(), "limit"); ok {
		limit = int(v)
	}
	if limit < 1 {
		return mcp.NewToolResultError("limit must be at least 1"), nil
	}

	cards, err := h.cards.NextDue(ctx, limit)
	if err != nil {
		return toolError("get_next_due_card", err), nil
	}
	if len(cards) == 0 {
		return jsonResult(map[string]any{"message": "No cards due for review"})
	}
	return jsonResult(map[string]any{"cards": summarizeAll(cards)})
}

func (h *handlers) updateCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id := stringArg(args, "card_id")
	if id == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}

	u := deck.Update{
		Question: optionalString(args, "question"),
		Answer:   optionalString(args, "answer"),
		Concept:  optionalString(args, "concept"),
	}
	if v, ok := numberArg(args, "rating"); ok {
		if v != math.Trunc(v) {
			return mcp.NewToolResultError(fmt.Sprintf("rating must be an integer 1-4, got %v", v)), nil
		}
		r := domain.Rating(int(v))
		u.Rating = &r
	}

	card, err := h.cards.UpdateCard(ctx, id, u)
	if err != nil {
		return toolError("update_card", err), nil
	}
	return jsonResult(map[string]any{
		"success":    true,
		"message":    "Card updated successfully",
		"next_due":   card.Due,
		"stability":  card.Stability,
		"difficulty": card.Difficulty,
	})
}

func (h *handlers) getCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req.GetArguments(), "card_id")
	if id == "" {
		return mcp.NewToolResultError("card_id is required"), nil
	}
	card, err := h.cards.GetCard(ctx, id)
	if err != nil {
		return toolError("get_card", err), nil
	}
	return jsonResult(struct {
		*domain.Card
		Retrievability float64 `json:"retrievability"`
	}{card, h.cards.Retrievability(card)})
}

func (h *handlers) listCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cards, err := h.cards.ListCards(ctx, stringArg(req.GetArguments(), "tag"))
	if err != nil {
		return toolError("list_cards", err), nil
	}
	return jsonResult(map[string]any{
		"count": len(cards),
		"cards": summarizeAll(cards),
	})
}

func (h *handlers) importDeck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(req.GetArguments(), "path")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	source, err := h.syncer.AddSource(ctx, path)
	if err != nil {
		return toolError("import_deck", err), nil
	}
	res, err := h.syncer.SyncSource(ctx, *source)
	if err != nil {
		return toolError("import_deck", err), nil
	}
	return jsonResult(map[string]any{
		"success":   true,
		"source_id": source.ID,
		"inserted":  res.Inserted,
		"removed":   res.Removed,
		"parsed":    res.Parsed,
		"errors":    res.Errors,
	})
}

// toolError turns a service error into a tool error result. Errors the
// caller can fix are reported as is; anything else is logged.
func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, deck.ErrCardNotFound):
		return mcp.NewToolResultError("Card not found")
	case errors.Is(err, fsrs.ErrInvalidRating),
		errors.Is(err, fsrs.ErrInvalidCardState),
		errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, deck.ErrInvalidSource):
		return mcp.NewToolResultError(err.Error())
	}
	slog.Error("Tool call failed", "tool", tool, "error", err)
	return mcp.NewToolResultError("Error: " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func optionalString(args map[string]any, key string) *string {
	s, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
