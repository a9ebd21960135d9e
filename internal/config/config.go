package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MimeLyc/ygo-judge/internal/agent"
	"github.com/MimeLyc/ygo-judge/internal/llm"
	"github.com/MimeLyc/ygo-judge/internal/tools"
	"github.com/MimeLyc/ygo-judge/pkg/icron"
)

// Config holds all application configuration.
// Values come from, in increasing priority: defaults, the file named by
// JUDGE_CONFIG, a .env file, and the process environment.
//
// Environment Variables:
// LLM Configuration:
// - LLM_PROVIDER: openai or compatible (default: openai)
// - LLM_API_KEY: API key for the LLM provider (required to answer questions)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name to use (default: gpt-4o)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 300)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - LLM_MAX_PROMPT_TOKENS: Prompt token cap, 0 disables (default: 0)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Agent Configuration:
// - AGENT_MAX_TURNS (default: 15)
// - AGENT_MAX_ACTIONS (default: 10)
// - AGENT_MAX_THINKING_TURNS (default: 3)
// - AGENT_REQUIRED_TOOLS: comma separated (default: all tools)
// - AGENT_PROMPTS_FILE: YAML prompt overrides (optional)
//
// Data Configuration:
// - DB_PATH: SQLite reference database (default: yugioh.db)
// - RULEBOOK_PATH: plain-text rulebook (optional)
// - RULEBOOK_SUMMARIZE: condense rulebook passages with the model (default: false)
//
// HTTP Configuration:
// - HTTP_ADDR (default: :8000)
// - HTTP_ALLOWED_ORIGIN (default: http://localhost:3000)
// - HTTP_UI_DIR: built front end to serve, empty disables (default: empty)
//
// Catalog Configuration:
// - CATALOG_URL (default: https://db.ygoprodeck.com/api/v7/cardinfo.php)
// - CATALOG_REFRESH_CRON: cron expression or descriptor, empty disables (default: empty)
//
// Logging:
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - LOG_FORMAT: console or json (default: console)
type Config struct {
	LLM     LLMConfig     `json:"llm"`
	Agent   AgentConfig   `json:"agent"`
	Data    DataConfig    `json:"data"`
	HTTP    HTTPConfig    `json:"http"`
	Catalog CatalogConfig `json:"catalog"`
	Log     LogConfig     `json:"log"`
}

// LLMConfig holds the configuration for the model gateway.
type LLMConfig struct {
	Provider        string  `json:"provider"`
	APIKey          string  `json:"-"`
	APIURL          string  `json:"api_url"`
	Model           string  `json:"model"`
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
	Timeout         int     `json:"timeout"`
	MaxPromptTokens int     `json:"max_prompt_tokens"`
	SiteURL         string  `json:"site_url"`
	AppName         string  `json:"app_name"`
}

// Gateway converts the settings into the llm package's config.
func (c LLMConfig) Gateway() *llm.Config {
	return &llm.Config{
		Provider:        c.Provider,
		APIKey:          c.APIKey,
		APIURL:          c.APIURL,
		Model:           c.Model,
		MaxTokens:       c.MaxTokens,
		Temperature:     c.Temperature,
		Timeout:         c.Timeout,
		MaxPromptTokens: c.MaxPromptTokens,
		SiteURL:         c.SiteURL,
		AppName:         c.AppName,
	}
}

// AgentConfig bounds every inquiry.
type AgentConfig struct {
	MaxTurns         int      `json:"max_turns"`
	MaxActions       int      `json:"max_actions"`
	MaxThinkingTurns int      `json:"max_thinking_turns"`
	RequiredTools    []string `json:"required_tools"`
	PromptsFile      string   `json:"prompts_file"`
}

// Loop converts the settings into the agent package's config, sampling from llm.
func (c *Config) Loop() agent.Config {
	return agent.Config{
		MaxTurns:         c.Agent.MaxTurns,
		MaxActions:       c.Agent.MaxActions,
		MaxThinkingTurns: c.Agent.MaxThinkingTurns,
		RequiredTools:    append([]string(nil), c.Agent.RequiredTools...),
		Sampling: llm.Sampling{
			Temperature: llm.Temperature(c.LLM.Temperature),
			MaxTokens:   c.LLM.MaxTokens,
		},
	}
}

type DataConfig struct {
	DBPath            string `json:"db_path"`
	RulebookPath      string `json:"rulebook_path"`
	RulebookSummarize bool   `json:"rulebook_summarize"`
}

type HTTPConfig struct {
	Addr          string `json:"addr"`
	AllowedOrigin string `json:"allowed_origin"`
	UIDir         string `json:"ui_dir"`
}

type CatalogConfig struct {
	URL         string `json:"url"`
	RefreshCron string `json:"refresh_cron"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

var defaults = map[string]any{
	"LLM_PROVIDER":          llm.ProviderOpenAI,
	"LLM_API_KEY":           "",
	"LLM_API_URL":           "https://api.openai.com/v1",
	"LLM_MODEL":             "gpt-4o",
	"LLM_MAX_TOKENS":        300,
	"LLM_TEMPERATURE":       0.7,
	"LLM_TIMEOUT":           60,
	"LLM_MAX_PROMPT_TOKENS": 0,
	"LLM_SITE_URL":          "",
	"LLM_APP_NAME":          "",

	"AGENT_MAX_TURNS":          15,
	"AGENT_MAX_ACTIONS":        10,
	"AGENT_MAX_THINKING_TURNS": 3,
	"AGENT_REQUIRED_TOOLS":     strings.Join(tools.DefaultNames(), ","),
	"AGENT_PROMPTS_FILE":       "",

	"DB_PATH":            "yugioh.db",
	"RULEBOOK_PATH":      "",
	"RULEBOOK_SUMMARIZE": false,

	"HTTP_ADDR":           ":8000",
	"HTTP_ALLOWED_ORIGIN": "http://localhost:3000",
	"HTTP_UI_DIR":         "",

	"CATALOG_URL":          "https://db.ygoprodeck.com/api/v7/cardinfo.php",
	"CATALOG_REFRESH_CRON": "",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "console",
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) { c.Data.DBPath = path }
}

func WithLLMAPIKey(key string) Option {
	return func(c *Config) { c.LLM.APIKey = key }
}

func WithHTTPAddr(addr string) Option {
	return func(c *Config) { c.HTTP.Addr = addr }
}

// New loads configuration from the environment, an optional .env file
// (JUDGE_ENV_FILE, default .env) and an optional config file (JUDGE_CONFIG).
func New(opts ...Option) (*Config, error) {
	envFile := os.Getenv("JUDGE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("JUDGE_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	config := &Config{
		LLM: LLMConfig{
			Provider:        v.GetString("LLM_PROVIDER"),
			APIKey:          v.GetString("LLM_API_KEY"),
			APIURL:          v.GetString("LLM_API_URL"),
			Model:           v.GetString("LLM_MODEL"),
			MaxTokens:       v.GetInt("LLM_MAX_TOKENS"),
			Temperature:     v.GetFloat64("LLM_TEMPERATURE"),
			Timeout:         v.GetInt("LLM_TIMEOUT"),
			MaxPromptTokens: v.GetInt("LLM_MAX_PROMPT_TOKENS"),
			SiteURL:         v.GetString("LLM_SITE_URL"),
			AppName:         v.GetString("LLM_APP_NAME"),
		},
		Agent: AgentConfig{
			MaxTurns:         v.GetInt("AGENT_MAX_TURNS"),
			MaxActions:       v.GetInt("AGENT_MAX_ACTIONS"),
			MaxThinkingTurns: v.GetInt("AGENT_MAX_THINKING_TURNS"),
			RequiredTools:    splitList(v.Get("AGENT_REQUIRED_TOOLS")),
			PromptsFile:      v.GetString("AGENT_PROMPTS_FILE"),
		},
		Data: DataConfig{
			DBPath:            v.GetString("DB_PATH"),
			RulebookPath:      v.GetString("RULEBOOK_PATH"),
			RulebookSummarize: v.GetBool("RULEBOOK_SUMMARIZE"),
		},
		HTTP: HTTPConfig{
			Addr:          v.GetString("HTTP_ADDR"),
			AllowedOrigin: v.GetString("HTTP_ALLOWED_ORIGIN"),
			UIDir:         v.GetString("HTTP_UI_DIR"),
		},
		Catalog: CatalogConfig{
			URL:         v.GetString("CATALOG_URL"),
			RefreshCron: strings.TrimSpace(v.GetString("CATALOG_REFRESH_CRON")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks everything every command needs. The API key is checked
// separately by RequireLLM since data commands run without one.
func (c *Config) validate() error {
	if err := c.Loop().Validate(); err != nil {
		return fmt.Errorf("invalid agent configuration: %w", err)
	}
	known := make(map[string]struct{})
	for _, name := range tools.DefaultNames() {
		known[name] = struct{}{}
	}
	for _, name := range c.Agent.RequiredTools {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("AGENT_REQUIRED_TOOLS: unknown tool %q", name)
		}
	}
	if strings.TrimSpace(c.Data.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Catalog.RefreshCron != "" {
		if _, err := icron.Parse(c.Catalog.RefreshCron); err != nil {
			return fmt.Errorf("invalid CATALOG_REFRESH_CRON: %w", err)
		}
	}
	return nil
}

// RequireLLM validates the model gateway settings.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	return c.LLM.Gateway().Validate()
}

func splitList(value any) []string {
	var items []string
	switch v := value.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
