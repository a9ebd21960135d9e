package tools

import (
	"context"

	"github.com/MimeLyc/ygo-judge/internal/cards"
)

// Names the model uses to request each capability.
const (
	NameRulingSearch = "search_rulings"
	NameMechanics    = "analyze_mechanics"
	NameRulebook     = "search_rulebook"
)

// DefaultNames lists every built-in tool, in the order they are described to
// the model.
func DefaultNames() []string {
	return []string{NameRulingSearch, NameMechanics, NameRulebook}
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Scope is the fixed context of one inquiry: the cards the user named, the
// question itself, and the language it was asked in.
type Scope struct {
	Cards    []cards.Card
	Question string
	Locale   string
}

func (s Scope) CardNames() []string {
	return cards.Names(s.Cards)
}

// Tool defines the interface for tools that can be called by the agent
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a one-line description shown to the model
	Description() string

	// Execute runs the tool. Problems the model can act on (a card outside
	// the scope, an unknown card) are reported as a ToolResult with IsError
	// set; a returned error means the backend itself failed.
	Execute(ctx context.Context, input string, scope Scope) (ToolResult, error)
}
