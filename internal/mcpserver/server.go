// Package mcpserver exposes the card deck as MCP tools over stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/sync"
)

// Name is the server name reported to MCP clients.
const Name = "spacedrep"

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with every card tool registered. The
// import_deck tool is only registered when syncer is non-nil.
func New(cards *deck.Service, syncer *sync.Syncer) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	h := &handlers{cards: cards, syncer: syncer}
	s.AddTool(addCardTool(), h.addCard)
	s.AddTool(removeCardTool(), h.removeCard)
	s.AddTool(nextDueTool(), h.nextDue)
	s.AddTool(updateCardTool(), h.updateCard)
	s.AddTool(getCardTool(), h.getCard)
	s.AddTool(listCardsTool(), h.listCards)
	if syncer != nil {
		s.AddTool(importDeckTool(), h.importDeck)
	}
	return s
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `Spaced repetition flashcards scheduled with FSRS.
Use get_next_due_card to fetch cards to study, show the question (or ask about
the concept), then call update_card with a rating: 1=Again, 2=Hard, 3=Good, 4=Easy.`
