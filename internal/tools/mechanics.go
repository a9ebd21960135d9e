package tools

import (
	"context"
	"strings"

	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/internal/mechanics"
)

// MechanicsTool renders a heuristic breakdown of one in-scope card's effect.
type MechanicsTool struct{}

func NewMechanicsTool() *MechanicsTool {
	return &MechanicsTool{}
}

func (t *MechanicsTool) Name() string {
	return NameMechanics
}

func (t *MechanicsTool) Description() string {
	return "Get a detailed breakdown of a card's mechanics."
}

func (t *MechanicsTool) Execute(_ context.Context, input string, scope Scope) (ToolResult, error) {
	input = strings.TrimSpace(input)
	card, ok := cards.Find(scope.Cards, input)
	if !ok {
		return errorResult(&NotFoundError{Card: input}), nil
	}
	return ToolResult{Content: mechanics.Analyze(card).String()}, nil
}
