package llm

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIGateway talks to the OpenAI chat completion API through the official SDK.
type OpenAIGateway struct {
	config *Config
	client *go_openai.Client
}

func NewOpenAIGateway(config *Config) (*OpenAIGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	clientConfig := go_openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimRight(config.APIURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(config.Timeout) * time.Second}

	return &OpenAIGateway{
		config: config,
		client: go_openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Complete returns the trimmed content of the first choice.
func (g *OpenAIGateway) Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error) {
	req := go_openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   g.config.MaxTokens,
		Temperature: openAITemperature(g.config.Temperature),
	}
	if sampling.MaxTokens > 0 {
		req.MaxTokens = sampling.MaxTokens
	}
	if t := sampling.Temperature; t != nil && *t >= 0 && *t <= 2 {
		req.Temperature = openAITemperature(*t)
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", newProviderError(ProviderOpenAI, statusCode(err), errors.Wrap(err, "chat completion"))
	}
	if len(resp.Choices) == 0 {
		return "", newProviderError(ProviderOpenAI, 0, errors.New("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// openAITemperature keeps a requested 0 on the wire: the SDK omits a zero
// temperature, which the API reads as its default of 1.
func openAITemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toOpenAIMessages(messages []Message) []go_openai.ChatCompletionMessage {
	out := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, go_openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func statusCode(err error) int {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
