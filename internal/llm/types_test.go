package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMarshaling(t *testing.T) {
	data, err := json.Marshal(SystemMessage("Observation: none"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"system","content":"Observation: none"}`, string(data))
}

func TestErrorImplementation(t *testing.T) {
	err := &Error{Message: "bad", Type: "invalid_request_error", Code: 400}
	assert.Equal(t, "LLM API Error: bad (type: invalid_request_error, code: 400)", err.Error())
}

func TestConfigValidate(t *testing.T) {
	base := Config{APIKey: "k", APIURL: "u", Model: "m", MaxTokens: 1, Temperature: 0.7, Timeout: 1}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: "API key"},
		{name: "missing url", mutate: func(c *Config) { c.APIURL = "" }, wantErr: "API URL"},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "zero tokens", mutate: func(c *Config) { c.MaxTokens = 0 }, wantErr: "max tokens"},
		{name: "hot temperature", mutate: func(c *Config) { c.Temperature = 2.5 }, wantErr: "temperature"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
		{name: "negative prompt cap", mutate: func(c *Config) { c.MaxPromptTokens = -1 }, wantErr: "prompt tokens"},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "bard" }, wantErr: "unknown provider"},
		{name: "openai provider", mutate: func(c *Config) { c.Provider = "OpenAI" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetHeaders_Attribution(t *testing.T) {
	c := Config{APIKey: "k", SiteURL: "https://judge.example", AppName: "ygo-judge"}
	headers := c.GetHeaders()
	assert.Equal(t, "Bearer k", headers["Authorization"])
	assert.Equal(t, "https://judge.example", headers["HTTP-Referer"])
	assert.Equal(t, "ygo-judge", headers["X-Title"])
}

type recordingGateway struct {
	got []Message
}

func (r *recordingGateway) Complete(_ context.Context, messages []Message, _ Sampling) (string, error) {
	r.got = messages
	return "ok", nil
}

func TestBudget_DropsOldestObservations(t *testing.T) {
	next := &recordingGateway{}
	budget, err := NewBudget(next, 60)
	require.NoError(t, err)

	long := strings.Repeat("ruling text ", 20)
	messages := []Message{
		SystemMessage("You are a judge."),
		UserMessage("Question: Does Ash negate it?"),
		SystemMessage("Observation: first " + long),
		AssistantMessage("Thought: keep going"),
		SystemMessage("Observation: second"),
	}

	_, err = budget.Complete(context.Background(), messages, DefaultSampling())
	require.NoError(t, err)

	require.Len(t, next.got, 4)
	assert.Equal(t, messages[0], next.got[0])
	assert.Equal(t, messages[1], next.got[1])
	assert.Equal(t, "Observation: second", next.got[3].Content)
	// caller's slice is untouched
	assert.Len(t, messages, 5)
	assert.Contains(t, messages[2].Content, "first")
}

func TestBudget_PassThroughWhenUnderCap(t *testing.T) {
	next := &recordingGateway{}
	budget, err := NewBudget(next, 10_000)
	require.NoError(t, err)

	messages := []Message{SystemMessage("a"), UserMessage("b"), SystemMessage("Observation: c")}
	_, err = budget.Complete(context.Background(), messages, DefaultSampling())
	require.NoError(t, err)
	assert.Equal(t, messages, next.got)
}

func TestBudget_StopsWhenNothingDroppable(t *testing.T) {
	budget, err := NewBudget(&recordingGateway{}, 1)
	require.NoError(t, err)

	messages := []Message{SystemMessage("system prompt"), UserMessage("question")}
	assert.Equal(t, messages, budget.Fit(messages))
}

func TestNewGateway_SelectsProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	for _, provider := range []string{ProviderCompatible, ProviderOpenAI} {
		t.Run(provider, func(t *testing.T) {
			cfg := testConfig(server.URL)
			cfg.Provider = provider
			gw, err := NewGateway(cfg)
			require.NoError(t, err)

			text, err := gw.Complete(context.Background(), []Message{UserMessage("hi")}, DefaultSampling())
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(text, "Thought:"))
		})
	}

	cfg := testConfig(server.URL)
	cfg.MaxPromptTokens = 500
	gw, err := NewGateway(cfg)
	require.NoError(t, err)
	_, ok := gw.(*Budget)
	assert.True(t, ok)
}

func TestOpenAIGateway_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Provider = ProviderOpenAI
	gw, err := NewOpenAIGateway(cfg)
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), []Message{UserMessage("hi")}, DefaultSampling())
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Contains(t, err.Error(), "500")
}

func TestOpenAIGateway_ZeroTemperatureIsSent(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Provider = ProviderOpenAI
	gw, err := NewOpenAIGateway(cfg)
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), []Message{UserMessage("hi")}, Sampling{Temperature: Temperature(0)})
	require.NoError(t, err)
	require.Contains(t, got, "temperature")
	assert.Less(t, got["temperature"].(float64), 1e-6)

	_, err = gw.Complete(context.Background(), []Message{UserMessage("hi")}, Sampling{})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got["temperature"].(float64), 1e-6)
}
