// Package ingest implements the end-to-end per-document pipeline: an
// idempotency check, extraction, document persistence, chunking, and a
// batched enrich/embed/persist loop over the resulting chunks.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/apperr"
	"github.com/teilomillet/ragingest/internal/chunk"
	"github.com/teilomillet/ragingest/internal/enrich"
	"github.com/teilomillet/ragingest/internal/extract"
	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/model"
	"github.com/teilomillet/ragingest/internal/ratelimit"
	"github.com/teilomillet/ragingest/internal/retry"
	"github.com/teilomillet/ragingest/internal/store"
)

const interBatchDelay = 500 * time.Millisecond

// Options is one ingestion request.
type Options struct {
	ClientDocumentID uuid.UUID
	ContentType      string
	OriginalFilename string
	WorldID          uuid.UUID
	EntityID         uuid.UUID
	RoomID           uuid.UUID
	AgentID          uuid.UUID

	// Content is raw base64 text for binary files, raw text otherwise (per
	// the binary-classification rule in IsBinary).
	Content string

	// ChunkSize/ChunkOverlap override the chunker's defaults; both zero
	// means "use the chunker's own defaults" (500/100), as used for
	// document ingestion. The character knowledge loader overrides these to
	// 1500/200.
	ChunkSize    int
	ChunkOverlap int
}

// Result is what Ingest returns to the caller.
type Result struct {
	ClientDocumentID       uuid.UUID
	StoredDocumentMemoryID uuid.UUID
	FragmentCount          int
}

// Orchestrator wires C5 through C8 and C4 together behind a VectorStore.
type Orchestrator struct {
	Config  *config.Config
	Store   store.VectorStore
	Gateway llm.Gateway
	Limiter *ratelimit.Registry
	Logger  logging.Logger
	Counter enrich.TokenCounter
}

// New builds an Orchestrator from its collaborators.
func New(cfg *config.Config, st store.VectorStore, gateway llm.Gateway, limiter *ratelimit.Registry, logger logging.Logger, counter enrich.TokenCounter) *Orchestrator {
	return &Orchestrator{Config: cfg, Store: st, Gateway: gateway, Limiter: limiter, Logger: logger, Counter: counter}
}

// Ingest runs the full pipeline for one document.
func (o *Orchestrator) Ingest(ctx context.Context, opts Options) (Result, error) {
	// 1. Idempotency check.
	existing, err := o.Store.GetDocument(ctx, opts.ClientDocumentID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: checking existing document: %v", apperr.ErrStoreFailure, err)
	}
	if existing != nil {
		count, err := o.Store.CountFragments(ctx, opts.ClientDocumentID)
		if err != nil {
			return Result{}, fmt.Errorf("%w: counting existing fragments: %v", apperr.ErrStoreFailure, err)
		}
		return Result{ClientDocumentID: opts.ClientDocumentID, StoredDocumentMemoryID: opts.ClientDocumentID, FragmentCount: count}, nil
	}

	// Scope ids the caller leaves unset default to the agent's own id.
	if opts.WorldID == uuid.Nil {
		opts.WorldID = opts.AgentID
	}
	if opts.RoomID == uuid.Nil {
		opts.RoomID = opts.AgentID
	}
	if opts.EntityID == uuid.Nil {
		opts.EntityID = opts.AgentID
	}

	// 2 & 3. Binary classification and extraction.
	isBinary := extract.IsBinary(opts.ContentType, opts.OriginalFilename)
	isPDF := opts.ContentType == "application/pdf"

	var extractedText string
	var storedText string
	fileSize := int64(len(opts.Content))
	if isBinary {
		raw, err := base64.StdEncoding.DecodeString(opts.Content)
		if err != nil {
			return Result{}, fmt.Errorf("%w: decoding base64 content: %v", apperr.ErrUnsupportedContent, err)
		}
		fileSize = int64(len(raw))
		extractedText, err = extract.Extract(raw, opts.ContentType, opts.OriginalFilename)
		if err != nil {
			return Result{}, err
		}
		if isPDF {
			storedText = opts.Content
		} else {
			storedText = extractedText
		}
	} else {
		extractedText = opts.Content
		storedText = opts.Content
	}

	if strings.TrimSpace(extractedText) == "" {
		return Result{}, fmt.Errorf("%w: extraction produced empty text for %s", apperr.ErrNoTextExtracted, opts.OriginalFilename)
	}

	// 4. Store document memory.
	now := time.Now()
	doc := model.Document{
		ID:               opts.ClientDocumentID,
		ContentType:      opts.ContentType,
		OriginalFilename: opts.OriginalFilename,
		FileSize:         fileSize,
		WorldID:          opts.WorldID,
		RoomID:           opts.RoomID,
		EntityID:         opts.EntityID,
		AgentID:          opts.AgentID,
		Text:             storedText,
		Metadata: model.DocumentMetadata(
			opts.ClientDocumentID,
			strings.TrimSuffix(filepath.Base(opts.OriginalFilename), filepath.Ext(opts.OriginalFilename)),
			strings.TrimPrefix(filepath.Ext(opts.OriginalFilename), "."),
			"rag-service-main-upload",
			now,
		),
		CreatedAt: now,
	}
	if err := o.Store.InsertDocument(ctx, doc); err != nil {
		return Result{}, fmt.Errorf("%w: persisting document: %v", apperr.ErrStoreFailure, err)
	}

	// 5. Chunk.
	chunkOpts := []chunk.Option{}
	if opts.ChunkSize > 0 {
		chunkOpts = append(chunkOpts, chunk.WithChunkSize(opts.ChunkSize))
	}
	if opts.ChunkOverlap > 0 {
		chunkOpts = append(chunkOpts, chunk.WithOverlap(opts.ChunkOverlap))
	}
	chunker := chunk.New(chunkOpts...)
	chunks := chunker.Chunk(extractedText)

	// 6. Enrich + embed + persist, batched.
	savedCount, failedCount, err := o.enrichEmbedPersist(ctx, opts, chunks, extractedText)
	if err != nil {
		return Result{}, err
	}
	if failedCount > 0 && o.Logger != nil {
		o.Logger.Warn("ingestion completed with failed chunks", "documentId", opts.ClientDocumentID, "failed", failedCount, "saved", savedCount)
	}

	return Result{
		ClientDocumentID:       opts.ClientDocumentID,
		StoredDocumentMemoryID: opts.ClientDocumentID,
		FragmentCount:          savedCount,
	}, nil
}

func (o *Orchestrator) enrichEmbedPersist(ctx context.Context, opts Options, chunks []model.Chunk, fullDocumentText string) (saved, failed int, err error) {
	if len(chunks) == 0 {
		return 0, 0, nil
	}

	k := o.Config.EffectiveConcurrency()
	enricher := enrich.New(o.Gateway, o.Limiter, o.Config.TextProvider, o.Logger, o.Counter, cacheFriendlyModel(o.Config), o.Config.CtxRagEnabled)

	for start := 0; start < len(chunks); start += k {
		end := start + k
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		enriched := enricher.Enrich(ctx, texts, opts.ContentType, fullDocumentText)

		fragments := make([]model.Fragment, 0, len(enriched))
		now := time.Now()
		for i, r := range enriched {
			position := batch[i].Position
			vector, embedErr := o.embedChunk(ctx, r.Text)
			if embedErr != nil {
				failed++
				if o.Logger != nil {
					o.Logger.Warn("embedding failed, dropping chunk", "documentId", opts.ClientDocumentID, "position", position, "error", embedErr)
				}
				continue
			}

			fragments = append(fragments, model.Fragment{
				ID:         uuid.New(),
				DocumentID: opts.ClientDocumentID,
				Position:   position,
				Text:       r.Text,
				Embedding:  vector,
				AgentID:    opts.AgentID,
				RoomID:     opts.RoomID,
				WorldID:    opts.WorldID,
				EntityID:   opts.EntityID,
				Metadata:   model.FragmentMetadata(opts.ClientDocumentID, position, "rag-service-main-upload", now),
				Source:     "rag-service-main-upload",
				CreatedAt:  now,
			})
		}

		if len(fragments) > 0 {
			if err := o.Store.InsertFragments(ctx, fragments); err != nil {
				failed += len(fragments)
				if o.Logger != nil {
					o.Logger.Warn("persisting fragments failed, dropping batch", "documentId", opts.ClientDocumentID, "count", len(fragments), "error", err)
				}
			} else {
				saved += len(fragments)
			}
		}

		if end < len(chunks) {
			select {
			case <-ctx.Done():
				return saved, failed, ctx.Err()
			case <-time.After(interBatchDelay):
			}
		}
	}

	return saved, failed, nil
}

func (o *Orchestrator) embedChunk(ctx context.Context, text string) ([]float32, error) {
	if o.Limiter != nil {
		if err := o.Limiter.For(o.Config.EmbeddingProvider).Acquire(ctx); err != nil {
			return nil, err
		}
		if err := o.Limiter.AcquireTokens(ctx, o.Config.EmbeddingProvider, o.estimateTokens(text)); err != nil {
			return nil, err
		}
	}

	op := func(ctx context.Context) (interface{}, error) {
		return o.Gateway.Embed(ctx, text)
	}
	raw, err := retry.WithRateLimitRetry(ctx, o.Logger, op)
	if err != nil {
		return nil, err
	}

	result, ok := raw.(llm.EmbedResult)
	if !ok || len(result.Vector) == 0 {
		return nil, apperr.ErrZeroVector
	}
	return result.Vector, nil
}

// estimateTokens sizes the embedding call's TOKENS_PER_MINUTE budget request
// against the orchestrator's configured counter (tiktoken-accurate, when
// supplied), falling back to a whitespace word count otherwise.
func (o *Orchestrator) estimateTokens(text string) int {
	if o.Counter != nil {
		return o.Counter.Count(text)
	}
	return len(strings.Fields(text))
}

// cacheFriendlyModel reports whether the active text provider/model
// combination is the OpenRouter/Claude-or-Gemini caching path the prompt
// builder's cache-friendly form targets.
func cacheFriendlyModel(cfg *config.Config) bool {
	if cfg.TextProvider != "openrouter" {
		return false
	}
	lower := strings.ToLower(cfg.TextModel)
	return strings.Contains(lower, "claude") || strings.Contains(lower, "gemini")
}
