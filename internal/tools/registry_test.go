package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	result ToolResult
	err    error
	inputs []string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Execute(_ context.Context, input string, _ Scope) (ToolResult, error) {
	s.inputs = append(s.inputs, input)
	return s.result, s.err
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{name: "b"}))
	require.NoError(t, r.Register(&stubTool{name: "a"}))

	err := r.Register(&stubTool{name: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Error(t, r.Register(&stubTool{name: " "}))

	tool, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", tool.Name())
	assert.True(t, r.Has("b"))
	assert.False(t, r.Has("c"))

	assert.Equal(t, []string{"a", "b"}, r.List())
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, "- b: stub b\n- a: stub a", r.Describe())
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	ok := &stubTool{name: "ok", result: ToolResult{Content: "fine"}}
	broken := &stubTool{name: "broken", err: errors.New("db locked")}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(broken))

	res := r.Execute(context.Background(), "ok", "input", Scope{})
	assert.Equal(t, ToolResult{Content: "fine"}, res)
	assert.Equal(t, []string{"input"}, ok.inputs)

	res = r.Execute(context.Background(), "broken", "x", Scope{})
	assert.True(t, res.IsError)
	assert.Equal(t, "Tool execution error: db locked", res.Content)

	res = r.Execute(context.Background(), "missing", "x", Scope{})
	assert.True(t, res.IsError)
	assert.Equal(t, `Tool "missing" not found`, res.Content)
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(&mockSearcher{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{NameMechanics, NameRulebook, NameRulingSearch}, r.List())
	assert.Contains(t, r.Describe(), "- search_rulings: Search for relevant rulings")
	assert.ElementsMatch(t, DefaultNames(), r.List())
}
