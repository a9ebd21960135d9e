package agent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := NewParser("search_rulings", "analyze_mechanics", "search_rulebook")

	tests := []struct {
		name string
		text string
		want TurnResult
	}{
		{
			name: "thought and action",
			text: "Thought: X\nAction: search_rulings: Card Name\nPAUSE",
			want: TurnResult{
				Thought: &Thought{Content: "X"},
				Action:  &Action{Name: "search_rulings", Input: "Card Name"},
			},
		},
		{
			name: "pause stops parsing",
			text: "Thought: first\nPAUSE\nAnswer: ignored\nRuling: ignored",
			want: TurnResult{Thought: &Thought{Content: "first"}},
		},
		{
			name: "input keeps later colons",
			text: "Action: search_rulebook: timing: when vs if",
			want: TurnResult{Action: &Action{Name: "search_rulebook", Input: "timing: when vs if"}},
		},
		{
			name: "malformed action ignored",
			text: "Thought: hmm\nAction: search_rulings",
			want: TurnResult{Thought: &Thought{Content: "hmm"}},
		},
		{
			name: "empty input kept",
			text: "Action: search_rulebook:   ",
			want: TurnResult{Action: &Action{Name: "search_rulebook", Input: ""}},
		},
		{
			name: "empty name ignored",
			text: "Action: : Ash Blossom",
		},
		{
			name: "unknown tool ignored",
			text: "Action: web_search: Ash Blossom",
		},
		{
			name: "answer spans lines",
			text: "Thought: done\nAnswer: Ash negates it\nbecause it sends from the Deck.\nRuling: Yes, it can.",
			want: TurnResult{
				Thought: &Thought{Content: "done"},
				Answer: &Answer{
					Explanation: "Ash negates it\nbecause it sends from the Deck.",
					Ruling:      "Yes, it can.",
				},
			},
		},
		{
			name: "answer without ruling ignored",
			text: "Answer: probably yes",
		},
		{
			name: "last thought wins",
			text: "Thought: one\nThought: two",
			want: TurnResult{Thought: &Thought{Content: "two"}},
		},
		{
			name: "indented lines",
			text: "   Thought: spaced  \n\tAction: analyze_mechanics: Shaddoll Fusion  ",
			want: TurnResult{
				Thought: &Thought{Content: "spaced"},
				Action:  &Action{Name: "analyze_mechanics", Input: "Shaddoll Fusion"},
			},
		},
		{
			name: "free text",
			text: "I think the answer is yes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_AnyToolWithoutRegistry(t *testing.T) {
	got := NewParser().Parse("Action: web_search: Ash Blossom")
	assert.Equal(t, &Action{Name: "web_search", Input: "Ash Blossom"}, got.Action)
}

func TestTurnResultHelpers(t *testing.T) {
	assert.True(t, TurnResult{}.Empty())
	assert.False(t, TurnResult{Thought: &Thought{}}.Empty())
	assert.False(t, TurnResult{Thought: &Thought{}}.Final())
	assert.True(t, TurnResult{Answer: &Answer{}}.Final())
}
