package agent

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/ygo-judge/internal/tools"
)

var _ ToolExecutor = (*tools.Registry)(nil)

func TestNewJudge_Validation(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := NewJudge(nil, registry)
	assert.Error(t, err)

	_, err = NewJudge(newScriptedGateway(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.RequiredTools = append(cfg.RequiredTools, "web_search")
	_, err = NewJudge(newScriptedGateway(), registry, WithJudgeConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"web_search"`)

	cfg = DefaultConfig()
	cfg.MaxTurns = 0
	_, err = NewJudge(newScriptedGateway(), registry, WithJudgeConfig(cfg))
	assert.Error(t, err)
}

func TestJudge_AskStartsFreshLoops(t *testing.T) {
	registry, _ := newTestRegistry(t)
	rec := newFakeRecorder()

	gw := newScriptedGateway(fullScript()...)
	judge, err := NewJudge(gw, registry, WithJudgeRecorder(rec))
	require.NoError(t, err)

	id, events := judge.Ask(context.Background(), testInquiry())
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	results, err := drain(t, events)
	require.NoError(t, err)
	require.Len(t, answers(results), 1)

	// a second inquiry starts from an empty history
	gw.replies = append(gw.replies, fullScript()...)
	id2, events := judge.Ask(context.Background(), testInquiry())
	assert.NotEqual(t, id, id2)
	results, err = drain(t, events)
	require.NoError(t, err)
	require.Len(t, answers(results), 1)
	assert.Len(t, gw.calls[8], 2)

	assert.Equal(t, []Outcome{OutcomeAnswered, OutcomeAnswered}, rec.outcomes)
}

func TestDetectLocale(t *testing.T) {
	// short questions may be classified as unreliable; never guess a wrong language
	got := detectLocale("If my opponent activates a card that would send monsters from their Deck to the graveyard, can I respond by discarding this card from my hand to negate that effect, and does it matter whether they control a monster from the Extra Deck?")
	assert.Contains(t, []string{"en", ""}, got)
	assert.Equal(t, "", detectLocale("?"))
}
