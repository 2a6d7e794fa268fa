// Package llm is the unified gateway over four model providers (OpenAI,
// Anthropic, Google, OpenRouter), exposing Embed and Generate so the rest of
// the pipeline never has to know which vendor is behind the active
// configuration.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/apperr"
)

// errProviderTransient / errZeroVector are local aliases kept terse for the
// provider files in this package.
var (
	errProviderTransient = apperr.ErrProviderTransient
	errZeroVector        = apperr.ErrZeroVector
)

// EmbedResult is the projection of a provider's embedding response the
// pipeline actually consumes.
type EmbedResult struct {
	Vector       []float32
	PromptTokens int
}

// GenerateOptions adjusts one Generate call.
type GenerateOptions struct {
	// CacheDocument, when set, is treated as the document segment eligible
	// for provider-side prompt caching (OpenRouter/Claude structured
	// cache_control, or folded into the deterministic prefix for Gemini).
	// When empty, auto-detection looks for <document>...</document> tags in
	// the prompt instead.
	CacheDocument string
	// DisableCache opts out of the default-on auto-caching behavior.
	DisableCache bool
}

// Gateway is the contract the rest of the pipeline (C8 and C9) calls
// through; every call goes out gated by the caller's rate limiter and
// wrapped by the caller's retrier, so Gateway implementations return
// classification-friendly errors (apperr.RateLimitError, apperr.ErrProviderTransient)
// rather than raw HTTP status handling.
type Gateway interface {
	Embed(ctx context.Context, text string) (EmbedResult, error)
	Generate(ctx context.Context, prompt, system string, opts GenerateOptions) (string, error)
}

// gateway is the concrete Gateway, dispatching per the active configuration.
type gateway struct {
	cfg *config.Config
}

// New builds a Gateway from the resolved configuration.
func New(cfg *config.Config) Gateway {
	return &gateway{cfg: cfg}
}

func (g *gateway) Embed(ctx context.Context, text string) (EmbedResult, error) {
	switch g.cfg.EmbeddingProvider {
	case "openai":
		return embedOpenAI(ctx, g.cfg, text)
	case "google":
		return embedGoogle(ctx, g.cfg, text)
	default:
		return EmbedResult{}, fmt.Errorf("embed: unsupported provider %q", g.cfg.EmbeddingProvider)
	}
}

func (g *gateway) Generate(ctx context.Context, prompt, system string, opts GenerateOptions) (string, error) {
	switch g.cfg.TextProvider {
	case "openai", "anthropic", "google":
		return generateDirect(ctx, g.cfg, prompt, system)
	case "openrouter":
		return generateOpenRouter(ctx, g.cfg, prompt, system, opts)
	default:
		return "", fmt.Errorf("generate: unsupported provider %q", g.cfg.TextProvider)
	}
}

// detectCacheDocument extracts a <document>...</document> segment from
// prompt when the caller didn't explicitly supply one, mirroring the
// gateway's auto-caching default.
func detectCacheDocument(prompt string, opts GenerateOptions) (document, rest string, ok bool) {
	if opts.DisableCache {
		return "", prompt, false
	}
	if opts.CacheDocument != "" {
		return opts.CacheDocument, prompt, true
	}
	const openTag, closeTag = "<document>", "</document>"
	start := strings.Index(prompt, openTag)
	end := strings.Index(prompt, closeTag)
	if start < 0 || end < 0 || end < start {
		return "", prompt, false
	}
	document = prompt[start+len(openTag) : end]
	rest = prompt[:start] + prompt[end+len(closeTag):]
	return strings.TrimSpace(document), strings.TrimSpace(rest), true
}

// isClaudeModel / isGeminiModel classify an OpenRouter model identifier by
// its vendor family so the caching strategy can be chosen.
func isClaudeModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

func isGeminiModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "gemini")
}

func isGemini25(model string) bool {
	return strings.Contains(model, "gemini-2.5") || strings.Contains(model, "gemini/2.5")
}
