package llm

import (
	"fmt"
	"strings"
)

const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
)

// Config holds the configuration for a model gateway
// Supports any OpenAI-compatible provider (OpenAI, OpenRouter, local servers)
//
// Provider: "openai" uses the official SDK, "compatible" the plain HTTP client
// MaxTokens / Temperature: defaults when a request leaves them unset
// Timeout: request timeout in seconds
// MaxPromptTokens: prompt token cap, 0 disables trimming
// SiteURL / AppName: OpenRouter attribution headers (compatible provider only)
type Config struct {
	Provider        string  `json:"provider"`
	APIKey          string  `json:"api_key"`
	APIURL          string  `json:"api_url"`
	Model           string  `json:"model"`
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
	Timeout         int     `json:"timeout"`
	MaxPromptTokens int     `json:"max_prompt_tokens"`
	SiteURL         string  `json:"site_url"`
	AppName         string  `json:"app_name"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.MaxPromptTokens < 0 {
		return fmt.Errorf("max prompt tokens must not be negative")
	}
	switch strings.ToLower(c.Provider) {
	case "", ProviderOpenAI, ProviderCompatible:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

// GetHeaders returns the headers for the LLM API request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}

	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}

	return headers
}
