// Package enrich drives the prompt builder and LLM gateway across a batch of
// chunks, producing situating context for each one while preserving the
// original chunk text verbatim inside the result.
package enrich

import (
	"context"
	"strings"
	"sync"

	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/promptbuilder"
	"github.com/teilomillet/ragingest/internal/ratelimit"
	"github.com/teilomillet/ragingest/internal/retry"
)

// Result is one chunk's enrichment outcome, addressed by its original
// position so callers can reassemble order regardless of completion order.
type Result struct {
	Position int
	Text     string
	Success  bool
}

// TokenCounter is shared with promptbuilder so callers can pass the same
// counter used elsewhere in the pipeline.
type TokenCounter = promptbuilder.TokenCounter

// Enricher drives C7+C4 across a batch of chunks under a provider's rate
// limiter and retrier.
type Enricher struct {
	Gateway       llm.Gateway
	Limiter       *ratelimit.Registry
	Retrier       func(ctx context.Context, logger logging.Logger, op retry.Op) (interface{}, error)
	Provider      string
	Logger        logging.Logger
	Counter       TokenCounter
	CacheFriendly bool
	Enabled       bool
}

// New builds an Enricher. When enabled is false, Enrich short-circuits every
// chunk to {text: chunk, success: true} without calling the gateway.
func New(gateway llm.Gateway, limiter *ratelimit.Registry, provider string, logger logging.Logger, counter TokenCounter, cacheFriendly, enabled bool) *Enricher {
	return &Enricher{
		Gateway:       gateway,
		Limiter:       limiter,
		Retrier:       retry.WithRateLimitRetry,
		Provider:      provider,
		Logger:        logger,
		Counter:       counter,
		CacheFriendly: cacheFriendly,
		Enabled:       enabled,
	}
}

// Enrich runs the batch concurrently, one goroutine per chunk, writing
// results into a pre-sized slice at each chunk's own index.
func (e *Enricher) Enrich(ctx context.Context, chunks []string, contentType, fullDocumentText string) []Result {
	results := make([]Result, len(chunks))

	if !e.Enabled {
		for i, c := range chunks {
			results[i] = Result{Position: i, Text: c, Success: true}
		}
		return results
	}

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, chunkText string) {
			defer wg.Done()
			results[i] = e.enrichOne(ctx, i, chunkText, contentType, fullDocumentText)
		}(i, c)
	}
	wg.Wait()

	return results
}

func (e *Enricher) enrichOne(ctx context.Context, position int, chunkText, contentType, fullDocumentText string) Result {
	fallback := Result{Position: position, Text: chunkText, Success: false}

	prompt := promptbuilder.Build(chunkText, contentType, fullDocumentText, e.CacheFriendly, e.Counter)
	if prompt.IsError() {
		if e.Logger != nil {
			e.Logger.Warn("enrichment prompt build failed, falling back to raw chunk", "position", position)
		}
		return fallback
	}

	if e.Limiter != nil {
		if err := e.Limiter.For(e.Provider).Acquire(ctx); err != nil {
			if e.Logger != nil {
				e.Logger.Warn("rate limiter wait cancelled during enrichment", "position", position, "error", err)
			}
			return fallback
		}

		promptText := prompt.PromptText + prompt.SystemPrompt + prompt.Inline
		if err := e.Limiter.AcquireTokens(ctx, e.Provider, e.estimateTokens(promptText)); err != nil {
			if e.Logger != nil {
				e.Logger.Warn("token budget wait cancelled during enrichment", "position", position, "error", err)
			}
			return fallback
		}
	}

	op := func(ctx context.Context) (interface{}, error) {
		if prompt.CacheFriendly {
			return e.Gateway.Generate(ctx, prompt.PromptText, prompt.SystemPrompt, llm.GenerateOptions{CacheDocument: fullDocumentText})
		}
		return e.Gateway.Generate(ctx, prompt.Inline, "", llm.GenerateOptions{DisableCache: true})
	}

	raw, err := e.Retrier(ctx, e.Logger, op)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("enrichment generate failed, falling back to raw chunk", "position", position, "error", err)
		}
		return fallback
	}

	text, ok := raw.(string)
	if !ok || strings.TrimSpace(text) == "" {
		if e.Logger != nil {
			e.Logger.Warn("enrichment returned empty text, falling back to raw chunk", "position", position)
		}
		return fallback
	}

	if !strings.Contains(text, chunkText) {
		text = text + "\n\n" + chunkText
	}

	return Result{Position: position, Text: text, Success: true}
}

// estimateTokens sizes the TOKENS_PER_MINUTE budget request against the
// same counter the caller configured (tiktoken-accurate, when supplied),
// falling back to a whitespace word count when none was provided.
func (e *Enricher) estimateTokens(text string) int {
	if e.Counter != nil {
		return e.Counter.Count(text)
	}
	return len(strings.Fields(text))
}
