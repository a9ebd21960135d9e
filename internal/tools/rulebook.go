package tools

import (
	"context"

	"github.com/MimeLyc/ygo-judge/internal/rulebook"
)

// RulebookSource returns contextual rulebook text for a free-text query.
type RulebookSource interface {
	Search(ctx context.Context, query string) string
}

// RulebookTool never reports an error; a missing index yields rulebook.NoContext.
type RulebookTool struct {
	source RulebookSource
}

func NewRulebookTool(source RulebookSource) *RulebookTool {
	return &RulebookTool{source: source}
}

func (t *RulebookTool) Name() string {
	return NameRulebook
}

func (t *RulebookTool) Description() string {
	return "Look up relevant rules in the Yu-Gi-Oh! rulebook."
}

func (t *RulebookTool) Execute(ctx context.Context, input string, _ Scope) (ToolResult, error) {
	if t.source == nil {
		return ToolResult{Content: rulebook.NoContext}, nil
	}
	return ToolResult{Content: t.source.Search(ctx, input)}, nil
}
