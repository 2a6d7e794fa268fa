package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/ingest"
	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/ratelimit"
	"github.com/teilomillet/ragingest/internal/store"
)

type stubGateway struct {
	dimension int
}

func (s *stubGateway) Embed(ctx context.Context, text string) (llm.EmbedResult, error) {
	dim := s.dimension
	if dim == 0 {
		dim = 3
	}
	return llm.EmbedResult{Vector: make([]float32, dim)}, nil
}

func (s *stubGateway) Generate(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
	return "context. " + prompt, nil
}

func testOrchestrator(gw llm.Gateway) *ingest.Orchestrator {
	cfg := config.Default()
	cfg.Collection = "fragments"
	st := store.NewMemoryStore()
	logger := logging.New(logging.LevelOff)
	return ingest.New(cfg, st, gw, ratelimit.NewRegistry(0, 0), logger, nil)
}

func TestPoolSpawnSucceedsWithPositiveDimension(t *testing.T) {
	p := NewPool(logging.New(logging.LevelOff))
	orch := testOrchestrator(&stubGateway{dimension: 3})
	err := p.Spawn(context.Background(), uuid.New(), orch)
	require.NoError(t, err)
}

func TestPoolSpawnFailsWithZeroDimension(t *testing.T) {
	p := NewPool(logging.New(logging.LevelOff))
	orch := testOrchestrator(&stubGateway{dimension: 0})
	agentID := uuid.New()
	// override the stub after construction is awkward, so build a zero-dim
	// gateway directly instead.
	orch.Gateway = zeroDimGateway{}
	err := p.Spawn(context.Background(), agentID, orch)
	assert.Error(t, err)
}

type zeroDimGateway struct{}

func (zeroDimGateway) Embed(ctx context.Context, text string) (llm.EmbedResult, error) {
	return llm.EmbedResult{Vector: nil}, nil
}

func (zeroDimGateway) Generate(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
	return "", nil
}

func TestPoolProcessDocumentReturnsIngestResult(t *testing.T) {
	p := NewPool(logging.New(logging.LevelOff))
	orch := testOrchestrator(&stubGateway{dimension: 3})
	agentID := uuid.New()
	require.NoError(t, p.Spawn(context.Background(), agentID, orch))

	opts := ingest.Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "a.txt",
		Content:          "some text content to ingest through the worker pool",
		AgentID:          agentID,
	}
	result, err := p.ProcessDocument(context.Background(), agentID, opts)
	require.NoError(t, err)
	assert.Equal(t, opts.ClientDocumentID, result.ClientDocumentID)
}

func TestPoolProcessDocumentFailsForUnknownAgent(t *testing.T) {
	p := NewPool(logging.New(logging.LevelOff))
	_, err := p.ProcessDocument(context.Background(), uuid.New(), ingest.Options{})
	assert.Error(t, err)
}

// panicOnIngestGateway answers the startup dimension probe normally but
// panics on any other Embed call, simulating a provider client panicking
// mid-ingest (e.g. a nil-pointer bug in a vendored SDK) after the worker has
// already reached stateReady.
type panicOnIngestGateway struct{}

func (panicOnIngestGateway) Embed(ctx context.Context, text string) (llm.EmbedResult, error) {
	if text == "dimension_check_string" {
		return llm.EmbedResult{Vector: make([]float32, 3)}, nil
	}
	panic("simulated provider client panic mid-ingest")
}

func (panicOnIngestGateway) Generate(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
	return "context. " + prompt, nil
}

func TestPoolSurvivesPanicDuringCommandProcessing(t *testing.T) {
	p := NewPool(logging.New(logging.LevelOff))
	orch := testOrchestrator(panicOnIngestGateway{})
	agentID := uuid.New()
	require.NoError(t, p.Spawn(context.Background(), agentID, orch))

	opts := ingest.Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "a.txt",
		Content:          "some text content that will panic once it reaches embedding",
		AgentID:          agentID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The panic happens inside the worker's goroutine during handle, well
	// after Spawn closed w.ready. This must not crash the test process (no
	// double-close of w.ready, no unrecovered panic) and must surface as an
	// ordinary error rather than hanging forever.
	_, err := p.ProcessDocument(ctx, agentID, opts)
	assert.Error(t, err)

	// The worker is now dead; a second command to the same agent must fail
	// cleanly instead of being silently swallowed.
	_, err = p.ProcessDocument(context.Background(), agentID, opts)
	assert.Error(t, err)
}

func TestPoolTerminateRemovesWorker(t *testing.T) {
	p := NewPool(logging.New(logging.LevelOff))
	orch := testOrchestrator(&stubGateway{dimension: 3})
	agentID := uuid.New()
	require.NoError(t, p.Spawn(context.Background(), agentID, orch))
	p.Terminate(agentID)

	_, err := p.ProcessDocument(context.Background(), agentID, ingest.Options{})
	assert.Error(t, err)
}
