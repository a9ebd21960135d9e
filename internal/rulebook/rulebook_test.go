package rulebook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/ygo-judge/internal/llm"
)

var sampleRulebook = strings.Join([]string{
	"CHAINS",
	"",
	"A Chain is a way to order the resolution of card effects. When more than one card effect is activated at the same time, " +
		"or when a player wants to respond to an effect, a Chain is formed. Chain Links resolve in reverse order, starting from the last card activated.",
	"",
	"SPELL SPEED",
	"",
	"Every effect has a Spell Speed from 1 to 3. To respond to an effect in a Chain you must use an effect with Spell Speed 2 or higher, " +
		"and it must be equal to or higher than the Spell Speed of the previous Chain Link. Quick Effects of monsters are Spell Speed 2.",
	"",
	"FUSION SUMMON",
	"",
	"A Fusion Summon uses a card such as Polymerization to send the Fusion Materials listed on the Fusion Monster from your hand or field to the Graveyard, " +
		"then Special Summons the Fusion Monster from the Extra Deck. Some cards allow materials from the Deck to be used.",
}, "\n")

func TestSplit_MergesShortHeadings(t *testing.T) {
	passages, err := split(strings.NewReader(sampleRulebook))
	require.NoError(t, err)
	require.Len(t, passages, 3)
	assert.True(t, strings.HasPrefix(passages[0].Text, "CHAINS\n"))
	assert.True(t, strings.HasPrefix(passages[2].Text, "FUSION SUMMON\n"))
	assert.Equal(t, 3, passages[2].Number)
}

func TestIndex_SearchReturnsBestPassages(t *testing.T) {
	idx, err := New(strings.NewReader(sampleRulebook), WithTopK(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	out := idx.Search(context.Background(), "Fusion Materials from the Deck")
	assert.True(t, strings.HasPrefix(out, "Relevant information from the Yu-Gi-Oh! rulebook:"))
	assert.Contains(t, out, "Passage 3:")
	assert.NotContains(t, out, "Passage 1:")
}

func TestIndex_NoContext(t *testing.T) {
	var nilIndex *Index
	assert.Equal(t, NoContext, nilIndex.Search(context.Background(), "chains"))
	assert.Equal(t, 0, nilIndex.Len())
	assert.NoError(t, nilIndex.Close())

	idx, err := New(strings.NewReader(sampleRulebook))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	assert.Equal(t, NoContext, idx.Search(context.Background(), "xyzzy"))
	assert.Equal(t, NoContext, idx.Search(context.Background(), "   "))
}

type fakeGateway struct {
	reply string
	err   error
	got   []llm.Message
}

func (f *fakeGateway) Complete(_ context.Context, messages []llm.Message, _ llm.Sampling) (string, error) {
	f.got = messages
	return f.reply, f.err
}

func TestIndex_Condenser(t *testing.T) {
	gw := &fakeGateway{reply: "Chain Links resolve in reverse order."}
	idx, err := New(strings.NewReader(sampleRulebook), WithCondenser(gw, llm.DefaultSampling()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	out := idx.Search(context.Background(), "How does a Chain resolve?")
	assert.Equal(t, "Chain Links resolve in reverse order.", out)
	require.Len(t, gw.got, 2)
	assert.Equal(t, llm.RoleSystem, gw.got[0].Role)
	assert.Contains(t, gw.got[0].Content, "Do not answer the question")
	assert.Contains(t, gw.got[1].Content, "User Question: How does a Chain resolve?")
	assert.Contains(t, gw.got[1].Content, "Passage 1:")
}

func TestIndex_CondenserFailureFallsBackToPassages(t *testing.T) {
	gw := &fakeGateway{err: errors.New("rate limited")}
	idx, err := New(strings.NewReader(sampleRulebook), WithCondenser(gw, llm.DefaultSampling()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	out := idx.Search(context.Background(), "Spell Speed")
	assert.Contains(t, out, "Passage 2:")
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rulebook.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleRulebook), 0o644))

	idx, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	assert.Equal(t, 3, idx.Len())

	_, err = Open(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
