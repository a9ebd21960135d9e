package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client is a plain HTTP client for OpenAI-compatible chat completion APIs
// such as OpenRouter or a local inference server. Thread-safe for concurrent use.
//
// config: Configuration for the LLM API
// httpClient: HTTP client for API requests
// baseURL: Base URL for the LLM API
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new LLM client with the given configuration
//
// Example:
//
//	client, err := llm.NewClient(&llm.Config{
//		APIKey: key, APIURL: "https://openrouter.ai/api/v1", Model: "openai/gpt-4o",
//		MaxTokens: 300, Temperature: 0.7, Timeout: 60,
//	})
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}

	return client, nil
}

// Complete sends the conversation and returns the trimmed text of the first choice.
// Every failure is reported as a *ProviderError.
func (c *Client) Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error) {
	response, err := c.ChatCompletion(ctx, messages, sampling)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", newProviderError(ProviderCompatible, 0, fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// ChatCompletion creates a chat completion request to the configured LLM API
//
// ctx: Context for the request
// messages: Array of messages in the conversation
// sampling: Temperature and max tokens; unset values fall back to the config
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, sampling Sampling) (*ChatResponse, error) {
	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(sampling),
		Temperature: c.getTemperature(sampling),
		N:           1,
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	if err != nil {
		return nil, err
	}

	return response, nil
}

// makeRequest makes a raw HTTP request to the configured LLM API
func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, newProviderError(ProviderCompatible, 0, fmt.Errorf("failed to marshal request: %w", err))
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, newProviderError(ProviderCompatible, 0, fmt.Errorf("failed to create request: %w", err))
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, newProviderError(ProviderCompatible, 0, fmt.Errorf("request timed out: %w", err))
		}
		return nil, newProviderError(ProviderCompatible, 0, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(ProviderCompatible, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, newProviderError(ProviderCompatible, resp.StatusCode, fmt.Errorf("API request failed: %s", string(responseBody)))
		}
		return nil, newProviderError(ProviderCompatible, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return nil, newProviderError(ProviderCompatible, resp.StatusCode, chatResponse.Error)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newProviderError(ProviderCompatible, resp.StatusCode, fmt.Errorf("API request failed: %s", string(responseBody)))
	}

	return &chatResponse, nil
}

func (c *Client) getMaxTokens(sampling Sampling) int {
	if sampling.MaxTokens > 0 {
		return sampling.MaxTokens
	}
	return c.config.MaxTokens
}

func (c *Client) getTemperature(sampling Sampling) float64 {
	if t := sampling.Temperature; t != nil && *t >= 0 && *t <= 2 {
		return *t
	}
	return c.config.Temperature
}
