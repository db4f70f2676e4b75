// Package config loads lexisafe settings from a TOML or YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/lexisafe/internal/assistant"
	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/review"
)

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider          string `toml:"provider" yaml:"provider"`
	Model             string `toml:"model" yaml:"model"`
	APIKey            string `toml:"api_key" yaml:"api_key"`
	BaseURL           string `toml:"base_url" yaml:"base_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute" yaml:"requests_per_minute"`
}

// Merge applies non-zero values from source.
func (c *LLMConfig) Merge(source *LLMConfig) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.TimeoutSeconds > 0 {
		c.TimeoutSeconds = source.TimeoutSeconds
	}
	if source.RequestsPerMinute > 0 {
		c.RequestsPerMinute = source.RequestsPerMinute
	}
}

// AnalysisConfig tunes risk extraction.
type AnalysisConfig struct {
	MaxChars    int     `toml:"max_chars" yaml:"max_chars"`
	Identity    string  `toml:"identity" yaml:"identity"`
	Temperature float64 `toml:"temperature" yaml:"temperature"`
}

// Merge applies non-zero values from source.
func (c *AnalysisConfig) Merge(source *AnalysisConfig) {
	if source.MaxChars > 0 {
		c.MaxChars = source.MaxChars
	}
	if source.Identity != "" {
		c.Identity = source.Identity
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
}

// GenerationConfig tunes chat or email generation.
type GenerationConfig struct {
	Temperature float64 `toml:"temperature" yaml:"temperature"`
}

// Merge applies non-zero values from source.
func (c *GenerationConfig) Merge(source *GenerationConfig) {
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
}

// ExtractorConfig selects the PDF text extractor.
type ExtractorConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
}

// ServerConfig configures `lexisafe serve`.
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
	Port int    `toml:"port" yaml:"port"`
}

// Config is the full lexisafe configuration.
type Config struct {
	LLM       LLMConfig        `toml:"llm" yaml:"llm"`
	Analysis  AnalysisConfig   `toml:"analysis" yaml:"analysis"`
	Chat      GenerationConfig `toml:"chat" yaml:"chat"`
	Email     GenerationConfig `toml:"email" yaml:"email"`
	Extractor ExtractorConfig  `toml:"extractor" yaml:"extractor"`
	Server    ServerConfig     `toml:"server" yaml:"server"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:       string(llm.ProviderGemini),
			Model:          llm.DefaultGeminiModel,
			TimeoutSeconds: int(llm.DefaultTimeout / time.Second),
		},
		Analysis: AnalysisConfig{
			MaxChars:    assistant.DefaultMaxChars,
			Identity:    string(document.IdentityContent),
			Temperature: assistant.DefaultAnalysisTemperature,
		},
		Chat:      GenerationConfig{Temperature: assistant.DefaultChatTemperature},
		Email:     GenerationConfig{Temperature: assistant.DefaultEmailTemperature},
		Extractor: ExtractorConfig{Backend: string(document.BackendNative)},
		Server:    ServerConfig{Addr: "127.0.0.1", Port: 6142},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.LLM.Merge(&source.LLM)
	c.Analysis.Merge(&source.Analysis)
	c.Chat.Merge(&source.Chat)
	c.Email.Merge(&source.Email)

	if source.Extractor.Backend != "" {
		c.Extractor.Backend = source.Extractor.Backend
	}
	if source.Server.Addr != "" {
		c.Server.Addr = source.Server.Addr
	}
	if source.Server.Port > 0 {
		c.Server.Port = source.Server.Port
	}
}

// DefaultPath returns ~/.lexisafe/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lexisafe", "config.toml")
}

// Load reads the config file at path over the defaults, then applies the
// environment. An empty path means DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	optional := path == ""
	if optional {
		path = DefaultPath()
	}

	if path != "" {
		loaded, err := readFile(path)
		switch {
		case err == nil:
			cfg.Merge(&loaded)
		case optional && errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	var loaded Config

	data, err := os.ReadFile(path)
	if err != nil {
		return loaded, fmt.Errorf("reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	case ".toml", "":
		err = toml.Unmarshal(data, &loaded)
	default:
		return loaded, fmt.Errorf("unsupported config format %q (want .toml or .yaml)", ext)
	}
	if err != nil {
		return loaded, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return loaded, nil
}

// ApplyEnv overrides settings from environment variables. The API key comes
// from GOOGLE_API_KEY or GEMINI_API_KEY for Gemini and OPENAI_API_KEY for
// OpenAI, unless the file already set one.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("LEXISAFE_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv("LEXISAFE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if llm.Provider(strings.ToLower(c.LLM.Provider)) == llm.ProviderOpenAI && c.LLM.Model == llm.DefaultGeminiModel {
		c.LLM.Model = llm.DefaultOpenAIModel
	}
	if c.LLM.APIKey != "" {
		return
	}

	var keys []string
	switch llm.Provider(strings.ToLower(c.LLM.Provider)) {
	case llm.ProviderOpenAI:
		keys = []string{"OPENAI_API_KEY"}
	default:
		keys = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	}
	for _, k := range keys {
		if v := getenv(k); v != "" {
			c.LLM.APIKey = v
			return
		}
	}
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if _, err := document.ParseIdentityMode(c.Analysis.Identity); err != nil {
		return fmt.Errorf("analysis.identity: %w", err)
	}
	switch llm.Provider(strings.ToLower(c.LLM.Provider)) {
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	switch document.Backend(strings.ToLower(c.Extractor.Backend)) {
	case document.BackendNative, document.BackendPDFToText:
	default:
		return fmt.Errorf("extractor.backend: unknown backend %q", c.Extractor.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	return nil
}

// LLMSettings converts the llm section for llm.New.
func (c *Config) LLMSettings() llm.Config {
	return llm.Config{
		Provider:          llm.Provider(strings.ToLower(c.LLM.Provider)),
		Model:             c.LLM.Model,
		APIKey:            c.LLM.APIKey,
		BaseURL:           c.LLM.BaseURL,
		Timeout:           time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
}

// ReviewSettings converts the analysis, chat, and email sections for review.New.
func (c *Config) ReviewSettings() review.Config {
	mode, _ := document.ParseIdentityMode(c.Analysis.Identity)
	return review.Config{
		MaxChars:            c.Analysis.MaxChars,
		Identity:            mode,
		AnalysisTemperature: c.Analysis.Temperature,
		ChatTemperature:     c.Chat.Temperature,
		EmailTemperature:    c.Email.Temperature,
	}
}
