package ragingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/chunk"
	"github.com/teilomillet/ragingest/internal/ingest"
	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/ratelimit"
	"github.com/teilomillet/ragingest/internal/store"
)

// tokenEncoding matches the one cmd/ragingest uses, so the context-prompt
// builder's 70%-of-max expansion rule sizes against real token counts here
// too, not just in the CLI entry point.
const tokenEncoding = "cl100k_base"

// AddKnowledgeRequest is the public shape of one ingestion request, mirroring
// the runtime host contract's addKnowledge call.
type AddKnowledgeRequest struct {
	ClientDocumentID uuid.UUID
	ContentType      string
	OriginalFilename string
	WorldID          uuid.UUID
	RoomID           uuid.UUID
	EntityID         uuid.UUID
	Content          string
}

// AddKnowledgeResult is returned from AddKnowledge.
type AddKnowledgeResult struct {
	ClientDocumentID       uuid.UUID
	StoredDocumentMemoryID uuid.UUID
	FragmentCount          int
}

// Engine is the top-level entry point wiring config, store, gateway, and
// orchestrator together for embedding callers that don't want to build
// those pieces by hand the way cmd/ragingest does.
type Engine struct {
	cfg          *config.Config
	store        store.VectorStore
	gateway      llm.Gateway
	orchestrator *ingest.Orchestrator
}

// New builds an Engine from a resolved configuration and a VectorStore,
// constructing the LLM gateway and rate-limit registry internally.
func New(cfg *config.Config, st store.VectorStore) *Engine {
	gateway := llm.New(cfg)
	limiter := ratelimit.NewRegistry(cfg.RequestsPerMinute, cfg.TokensPerMinute)
	logger := logging.New(cfg.LogLevel)

	counter, err := chunk.NewTiktokenCounter(tokenEncoding)
	if err != nil {
		logger.Warn("falling back to word-count token estimation", "error", err)
		counter = nil
	}

	orchestrator := ingest.New(cfg, st, gateway, limiter, logger, counter)
	return &Engine{cfg: cfg, store: st, gateway: gateway, orchestrator: orchestrator}
}

// AddKnowledge runs the full ingestion pipeline for one document, realizing
// this package's addKnowledge contract.
func (e *Engine) AddKnowledge(ctx context.Context, req AddKnowledgeRequest) (AddKnowledgeResult, error) {
	result, err := e.orchestrator.Ingest(ctx, ingest.Options{
		ClientDocumentID: req.ClientDocumentID,
		ContentType:      req.ContentType,
		OriginalFilename: req.OriginalFilename,
		WorldID:          req.WorldID,
		RoomID:           req.RoomID,
		EntityID:         req.EntityID,
		Content:          req.Content,
	})
	if err != nil {
		return AddKnowledgeResult{}, err
	}
	return AddKnowledgeResult{
		ClientDocumentID:       result.ClientDocumentID,
		StoredDocumentMemoryID: result.StoredDocumentMemoryID,
		FragmentCount:          result.FragmentCount,
	}, nil
}

// GetKnowledge is explicitly out of scope (see Non-goals: ranked retrieval):
// this package only ingests and persists fragments, it does not rank or
// retrieve them. Calling it documents that boundary rather than silently
// omitting the contract entry the host interface describes.
func (e *Engine) GetKnowledge(ctx context.Context, message string) (interface{}, error) {
	return nil, fmt.Errorf("GetKnowledge: retrieval/search is out of scope for this engine")
}
