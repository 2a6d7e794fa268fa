// Package config provides a flexible configuration management system for the
// ingestion engine. It handles configuration loading, validation, and
// persistence with support for multiple sources:
//   - Configuration files (JSON)
//   - Environment variables
//   - Programmatic defaults
//
// The package implements a hierarchical configuration system where settings
// can be overridden in the following order (lowest to highest precedence):
//  1. Default values
//  2. Configuration file
//  3. Environment variables
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teilomillet/ragingest/internal/apperr"
	"github.com/teilomillet/ragingest/internal/logging"
)

// Config holds all configuration for the ingestion engine.
type Config struct {
	// Embedding provider settings.
	EmbeddingProvider        string // "openai" or "google"
	EmbeddingModel           string
	EmbeddingDimension       int // declared vector width; only honored by OpenAI text-embedding-3-*
	OpenAIEmbeddingModel     string
	OpenAIEmbeddingDimension int

	// Text (generation) provider settings, required when CtxRagEnabled is true.
	TextProvider string // "openai", "anthropic", "openrouter", "google"
	TextModel    string

	// Per-provider credentials and optional endpoint overrides, keyed by
	// provider name: "openai", "anthropic", "google", "openrouter".
	APIKeys  map[string]string
	BaseURLs map[string]string

	MaxInputTokens  int
	MaxOutputTokens int

	CtxRagEnabled bool

	MaxConcurrentRequests int
	RequestsPerMinute     int
	TokensPerMinute       int

	// Vector store backend selection.
	VectorDB      string // "milvus" or "memory"
	MilvusAddress string
	Collection    string

	LogLevel logging.LogLevel

	Timeout    time.Duration
	MaxRetries int
}

// providerRPMCeiling and providerTPMCeiling clamp the configured rate-limit
// knobs to provider-documented ceilings.
var providerRPMCeiling = map[string]int{
	"openai": 3000,
	"google": 60,
}

var providerTPMCeiling = map[string]int{
	"openai": 150000,
	"google": 100000,
}

// Default builds the configuration's baseline defaults, before any config
// file or environment overlay is applied.
func Default() *Config {
	return &Config{
		EmbeddingProvider:  "openai",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,

		MaxInputTokens:  4000,
		MaxOutputTokens: 4096,

		CtxRagEnabled: false,

		MaxConcurrentRequests: 30,
		RequestsPerMinute:     60,
		TokensPerMinute:       150000,

		VectorDB:   "memory",
		Collection: "documents",

		LogLevel: logging.LevelInfo,

		Timeout:    30 * time.Second,
		MaxRetries: 3,

		APIKeys:  make(map[string]string),
		BaseURLs: make(map[string]string),
	}
}

// Load resolves configuration from defaults, an optional JSON config file,
// and environment variables, in that order of increasing precedence, then
// validates the result.
//
// Configuration file search paths:
//  1. $RAGINGEST_CONFIG environment variable
//  2. ~/.ragingest/config.json
//  3. ./ragingest.json
func Load() (*Config, error) {
	cfg := Default()

	configFile := os.Getenv("RAGINGEST_CONFIG")
	if configFile == "" {
		var candidates []string
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".ragingest", "config.json"))
		}
		candidates = append(candidates, "ragingest.json")
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				configFile = candidate
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parsing config file %s: %v", apperr.ErrConfigInvalid, configFile, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	clampRateLimits(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.EmbeddingProvider = v
	}
	if v := os.Getenv("TEXT_PROVIDER"); v != "" {
		cfg.TextProvider = v
	}
	if v := os.Getenv("TEXT_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("TEXT_MODEL"); v != "" {
		cfg.TextModel = v
	}
	if v := os.Getenv("OPENAI_EMBEDDING_MODEL"); v != "" {
		cfg.OpenAIEmbeddingModel = v
	}
	if v := os.Getenv("OPENAI_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.OpenAIEmbeddingDimension = n
		}
	}
	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.EmbeddingDimension = n
		}
	}
	if v := os.Getenv("MAX_INPUT_TOKENS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MaxInputTokens = n
		}
	}
	if v := os.Getenv("MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MaxOutputTokens = n
		}
	}
	if v := os.Getenv("CTX_RAG_ENABLED"); v != "" {
		cfg.CtxRagEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MAX_CONCURRENT_REQUESTS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.MaxConcurrentRequests = n
		}
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("TOKENS_PER_MINUTE"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.TokensPerMinute = n
		}
	}
	if v := os.Getenv("RAGINGEST_VECTOR_DB"); v != "" {
		cfg.VectorDB = v
	}
	if v := os.Getenv("RAGINGEST_MILVUS_ADDRESS"); v != "" {
		cfg.MilvusAddress = v
	}
	if v := os.Getenv("RAGINGEST_COLLECTION"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("RAGINGEST_LOG_LEVEL"); v != "" {
		var lvl logging.LogLevel
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			cfg.LogLevel = lvl
		}
	}

	for _, provider := range []string{"openai", "anthropic", "google", "openrouter"} {
		envKey := envName(provider) + "_API_KEY"
		if v := os.Getenv(envKey); v != "" {
			cfg.APIKeys[provider] = v
		}
		envBase := envName(provider) + "_BASE_URL"
		if v := os.Getenv(envBase); v != "" {
			cfg.BaseURLs[provider] = v
		}
	}
}

func envName(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI"
	case "anthropic":
		return "ANTHROPIC"
	case "google":
		return "GOOGLE"
	case "openrouter":
		return "OPENROUTER"
	default:
		return provider
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive: %s", s)
	}
	return n, nil
}

func clampRateLimits(cfg *Config) {
	if ceil, ok := providerRPMCeiling[cfg.EmbeddingProvider]; ok && cfg.RequestsPerMinute > ceil {
		cfg.RequestsPerMinute = ceil
	}
	if ceil, ok := providerTPMCeiling[cfg.EmbeddingProvider]; ok && cfg.TokensPerMinute > ceil {
		cfg.TokensPerMinute = ceil
	}
}

// Validate rejects inconsistent configuration: a provider selected without
// its key, or contextual enrichment enabled without a text provider/model.
func (c *Config) Validate() error {
	if c.EmbeddingProvider != "openai" && c.EmbeddingProvider != "google" {
		return fmt.Errorf("%w: unknown EMBEDDING_PROVIDER %q", apperr.ErrConfigInvalid, c.EmbeddingProvider)
	}
	if _, ok := c.APIKeys[c.EmbeddingProvider]; !ok {
		return fmt.Errorf("%w: missing API key for embedding provider %q", apperr.ErrConfigInvalid, c.EmbeddingProvider)
	}

	if c.CtxRagEnabled {
		switch c.TextProvider {
		case "openai", "anthropic", "openrouter", "google":
		default:
			return fmt.Errorf("%w: CTX_RAG_ENABLED requires a valid TEXT_PROVIDER, got %q", apperr.ErrConfigInvalid, c.TextProvider)
		}
		if c.TextModel == "" {
			return fmt.Errorf("%w: CTX_RAG_ENABLED requires TEXT_MODEL", apperr.ErrConfigInvalid)
		}
		if _, ok := c.APIKeys[c.TextProvider]; !ok {
			return fmt.Errorf("%w: missing API key for text provider %q", apperr.ErrConfigInvalid, c.TextProvider)
		}
	}

	switch c.VectorDB {
	case "milvus", "memory":
	default:
		return fmt.Errorf("%w: unknown RAGINGEST_VECTOR_DB %q", apperr.ErrConfigInvalid, c.VectorDB)
	}
	if c.VectorDB == "milvus" && c.MilvusAddress == "" {
		return fmt.Errorf("%w: RAGINGEST_VECTOR_DB=milvus requires RAGINGEST_MILVUS_ADDRESS", apperr.ErrConfigInvalid)
	}

	return nil
}

// EffectiveEmbeddingModel resolves the model name to use for the embedding
// provider, falling back to the OpenAI-specific override when relevant.
func (c *Config) EffectiveEmbeddingModel() string {
	if c.EmbeddingProvider == "openai" && c.OpenAIEmbeddingModel != "" {
		return c.OpenAIEmbeddingModel
	}
	return c.EmbeddingModel
}

// EffectiveEmbeddingDimension resolves the declared embedding width,
// preferring the OpenAI-specific override whenever the embedding provider is
// openai. Whether a width is sent to the provider at all is decided per model
// by the OpenAI embedding client.
func (c *Config) EffectiveEmbeddingDimension() int {
	if c.EmbeddingProvider == "openai" && c.OpenAIEmbeddingDimension > 0 {
		return c.OpenAIEmbeddingDimension
	}
	return c.EmbeddingDimension
}

// EffectiveConcurrency picks K = min(30, MaxConcurrentRequests) as the batch
// width the orchestrator streams chunks through.
func (c *Config) EffectiveConcurrency() int {
	k := c.MaxConcurrentRequests
	if k <= 0 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return k
}

// Save persists the configuration to a JSON file at the specified path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
