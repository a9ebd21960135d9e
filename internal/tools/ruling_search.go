package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/ygo-judge/internal/cards"
)

// RulingSearcher finds the rulings relevant to query for the given cards.
type RulingSearcher interface {
	Search(ctx context.Context, query string, scope []string, locale string) ([]cards.Ruling, error)
}

// RulingSearchTool looks up official rulings, restricted to the inquiry's cards.
type RulingSearchTool struct {
	searcher RulingSearcher
}

func NewRulingSearchTool(searcher RulingSearcher) *RulingSearchTool {
	return &RulingSearchTool{searcher: searcher}
}

func (t *RulingSearchTool) Name() string {
	return NameRulingSearch
}

func (t *RulingSearchTool) Description() string {
	return "Search for relevant rulings about the cards. Only use this for cards mentioned in the question."
}

func (t *RulingSearchTool) Execute(ctx context.Context, input string, scope Scope) (ToolResult, error) {
	input = strings.TrimSpace(input)
	if _, ok := cards.Find(scope.Cards, input); !ok {
		return errorResult(&ScopeError{Card: input}), nil
	}

	rulings, err := t.searcher.Search(ctx, input, scope.CardNames(), scope.Locale)
	if err != nil {
		return ToolResult{}, fmt.Errorf("search rulings: %w", err)
	}
	if len(rulings) == 0 {
		return ToolResult{Content: fmt.Sprintf("No rulings found for '%s'.", input)}, nil
	}

	contents := make([]string, 0, len(rulings))
	for _, r := range rulings {
		contents = append(contents, r.Content)
	}
	return ToolResult{Content: strings.Join(contents, "\n")}, nil
}
