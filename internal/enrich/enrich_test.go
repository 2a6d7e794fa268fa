package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/ratelimit"
)

type stubGateway struct {
	generateFn func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error)
}

func (s *stubGateway) Embed(ctx context.Context, text string) (llm.EmbedResult, error) {
	return llm.EmbedResult{}, nil
}

func (s *stubGateway) Generate(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
	return s.generateFn(ctx, prompt, system, opts)
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestEnrichShortCircuitsWhenDisabled(t *testing.T) {
	e := New(&stubGateway{}, ratelimit.NewRegistry(0, 0), "openai", logging.New(logging.LevelOff), wordCounter{}, false, false)
	results := e.Enrich(context.Background(), []string{"a", "b"}, "text/plain", "doc")
	require.Len(t, results, 2)
	assert.Equal(t, Result{Position: 0, Text: "a", Success: true}, results[0])
	assert.Equal(t, Result{Position: 1, Text: "b", Success: true}, results[1])
}

func TestEnrichPreservesVerbatimChunkOnSuccess(t *testing.T) {
	gw := &stubGateway{generateFn: func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
		return "this is the context. the chunk text", nil
	}}
	e := New(gw, ratelimit.NewRegistry(0, 0), "openai", logging.New(logging.LevelOff), wordCounter{}, false, true)
	results := e.Enrich(context.Background(), []string{"the chunk text"}, "text/plain", "the document text")
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Contains(t, results[0].Text, "the chunk text")
}

func TestEnrichRepairsMissingVerbatimChunk(t *testing.T) {
	gw := &stubGateway{generateFn: func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
		return "a context that omits the original text", nil
	}}
	e := New(gw, ratelimit.NewRegistry(0, 0), "openai", logging.New(logging.LevelOff), wordCounter{}, false, true)
	results := e.Enrich(context.Background(), []string{"the chunk text"}, "text/plain", "the document text")
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Contains(t, results[0].Text, "the chunk text")
	assert.Contains(t, results[0].Text, "a context that omits the original text")
}

func TestEnrichFallsBackToRawChunkOnGatewayError(t *testing.T) {
	gw := &stubGateway{generateFn: func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
		return "", assertErr
	}}
	e := New(gw, ratelimit.NewRegistry(0, 0), "openai", logging.New(logging.LevelOff), wordCounter{}, false, true)
	results := e.Enrich(context.Background(), []string{"the chunk text"}, "text/plain", "the document text")
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "the chunk text", results[0].Text)
}

func TestEnrichUsesCacheFriendlyFormForCacheFriendlyEnricher(t *testing.T) {
	var gotOpts llm.GenerateOptions
	var gotSystem string
	gw := &stubGateway{generateFn: func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
		gotOpts = opts
		gotSystem = system
		return "short context. the chunk text", nil
	}}
	e := New(gw, ratelimit.NewRegistry(0, 0), "anthropic", logging.New(logging.LevelOff), wordCounter{}, true, true)
	results := e.Enrich(context.Background(), []string{"the chunk text"}, "text/plain", "the document text")
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "the document text", gotOpts.CacheDocument)
	assert.NotEmpty(t, gotSystem)
}

func TestEnrichPreservesOrderAcrossConcurrentChunks(t *testing.T) {
	gw := &stubGateway{generateFn: func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
		return "context " + prompt, nil
	}}
	e := New(gw, ratelimit.NewRegistry(0, 0), "openai", logging.New(logging.LevelOff), wordCounter{}, false, true)
	chunks := make([]string, 20)
	for i := range chunks {
		chunks[i] = "chunk"
	}
	results := e.Enrich(context.Background(), chunks, "text/plain", "document")
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.Position)
	}
}

var assertErr = errFixed{}

type errFixed struct{}

func (errFixed) Error() string { return "gateway failure" }
