package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValidOnceKeyed(t *testing.T) {
	cfg := Default()
	cfg.APIKeys["openai"] = "sk-test"

	err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, 1536, cfg.EffectiveEmbeddingDimension())
}

func TestValidateRejectsMissingEmbeddingKey(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRequiresTextProviderWhenCtxRagEnabled(t *testing.T) {
	cfg := Default()
	cfg.APIKeys["openai"] = "sk-test"
	cfg.CtxRagEnabled = true

	err := cfg.Validate()
	assert.Error(t, err)

	cfg.TextProvider = "anthropic"
	cfg.TextModel = "claude-3.5-sonnet"
	err = cfg.Validate()
	assert.Error(t, err, "still missing the anthropic API key")

	cfg.APIKeys["anthropic"] = "sk-ant-test"
	err = cfg.Validate()
	assert.NoError(t, err)
}

func TestValidateRejectsMilvusWithoutAddress(t *testing.T) {
	cfg := Default()
	cfg.APIKeys["openai"] = "sk-test"
	cfg.VectorDB = "milvus"

	err := cfg.Validate()
	assert.Error(t, err)

	cfg.MilvusAddress = "localhost:19530"
	err = cfg.Validate()
	assert.NoError(t, err)
}

func TestEffectiveEmbeddingModelFallsBackToOpenAIOverride(t *testing.T) {
	cfg := Default()
	cfg.EmbeddingModel = "text-embedding-3-small"
	cfg.OpenAIEmbeddingModel = "text-embedding-ada-002"

	assert.Equal(t, "text-embedding-ada-002", cfg.EffectiveEmbeddingModel())

	cfg.EmbeddingProvider = "google"
	assert.Equal(t, "text-embedding-3-small", cfg.EffectiveEmbeddingModel())
}

func TestEffectiveConcurrencyClampedTo30(t *testing.T) {
	cfg := Default()
	cfg.MaxConcurrentRequests = 100
	assert.Equal(t, 30, cfg.EffectiveConcurrency())

	cfg.MaxConcurrentRequests = 5
	assert.Equal(t, 5, cfg.EffectiveConcurrency())

	cfg.MaxConcurrentRequests = 0
	assert.Equal(t, 1, cfg.EffectiveConcurrency())
}

func TestClampRateLimitsAppliesProviderCeilings(t *testing.T) {
	cfg := Default()
	cfg.EmbeddingProvider = "google"
	cfg.RequestsPerMinute = 1000
	cfg.TokensPerMinute = 1000000

	clampRateLimits(cfg)

	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.Equal(t, 100000, cfg.TokensPerMinute)
}
