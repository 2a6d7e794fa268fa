package ingest

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/apperr"
	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/ratelimit"
	"github.com/teilomillet/ragingest/internal/store"
)

type stubGateway struct {
	embedFn    func(ctx context.Context, text string) (llm.EmbedResult, error)
	generateFn func(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error)
}

func (s *stubGateway) Embed(ctx context.Context, text string) (llm.EmbedResult, error) {
	if s.embedFn != nil {
		return s.embedFn(ctx, text)
	}
	return llm.EmbedResult{Vector: []float32{0.1, 0.2, 0.3}}, nil
}

func (s *stubGateway) Generate(ctx context.Context, prompt, system string, opts llm.GenerateOptions) (string, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, prompt, system, opts)
	}
	return "context. " + prompt, nil
}

func testOrchestrator(gw llm.Gateway) (*Orchestrator, store.VectorStore) {
	cfg := config.Default()
	cfg.CtxRagEnabled = false
	st := store.NewMemoryStore()
	logger := logging.New(logging.LevelOff)
	o := New(cfg, st, gw, ratelimit.NewRegistry(0, 0), logger, nil)
	return o, st
}

func TestIngestPlainTextDocumentProducesFragments(t *testing.T) {
	o, _ := testOrchestrator(&stubGateway{})
	opts := Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "notes.txt",
		Content:          "This is a short plain text document with a little content in it.",
	}
	result, err := o.Ingest(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, opts.ClientDocumentID, result.ClientDocumentID)
	assert.Greater(t, result.FragmentCount, 0)
}

func TestIngestIsIdempotentOnSecondCall(t *testing.T) {
	o, _ := testOrchestrator(&stubGateway{})
	opts := Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "notes.txt",
		Content:          "Some repeated content that will be ingested twice.",
	}
	first, err := o.Ingest(context.Background(), opts)
	require.NoError(t, err)

	second, err := o.Ingest(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, first.FragmentCount, second.FragmentCount)
}

func TestIngestRejectsEmptyExtraction(t *testing.T) {
	o, _ := testOrchestrator(&stubGateway{})
	opts := Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "empty.txt",
		Content:          "   ",
	}
	_, err := o.Ingest(context.Background(), opts)
	assert.ErrorIs(t, err, apperr.ErrNoTextExtracted)
}

func TestIngestSkipsChunksWithZeroVectorEmbedding(t *testing.T) {
	gw := &stubGateway{embedFn: func(ctx context.Context, text string) (llm.EmbedResult, error) {
		return llm.EmbedResult{}, nil
	}}
	o, _ := testOrchestrator(gw)
	opts := Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "notes.txt",
		Content:          "This document will fail to embed for every chunk produced.",
	}
	result, err := o.Ingest(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FragmentCount)
}

func TestIngestStoresBase64ShapedTextContentVerbatim(t *testing.T) {
	gw := &stubGateway{}
	o, st := testOrchestrator(gw)
	// A text/plain payload is not binary even when it happens to be
	// base64-shaped, so it is stored as-is rather than decoded. The PDF
	// branch (base64 kept as the document text) needs a real PDF byte stream
	// and is not exercised here.
	opts := Options{
		ClientDocumentID: uuid.New(),
		ContentType:      "text/plain",
		OriginalFilename: "doc.txt",
		Content:          base64.StdEncoding.EncodeToString([]byte("irrelevant for this path")),
	}
	_, err := o.Ingest(context.Background(), opts)
	require.NoError(t, err)

	doc, err := st.GetDocument(context.Background(), opts.ClientDocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, opts.Content, doc.Text)
}
