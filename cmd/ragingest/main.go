// Command ragingest loads configuration, builds a store and LLM gateway,
// and ingests one or more file paths given on the command line — the
// concrete, runnable proof that the pipeline's packages compose into a
// working whole, distinct from their package-level tests.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/chunk"
	"github.com/teilomillet/ragingest/internal/extract"
	"github.com/teilomillet/ragingest/internal/ingest"
	"github.com/teilomillet/ragingest/internal/llm"
	"github.com/teilomillet/ragingest/internal/logging"
	"github.com/teilomillet/ragingest/internal/ratelimit"
	"github.com/teilomillet/ragingest/internal/store"
)

// tokenEncoding is the tiktoken encoding used to count chunk tokens for
// context-prompt budgets and token-budget requests, so the 70%-of-max chunk
// expansion rule in the prompt builder operates on real token counts rather
// than the word-count approximation. The chunker sizes chunks by characters
// and does not use this count.
const tokenEncoding = "cl100k_base"

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <file> [file...]", os.Args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.LogLevel)

	vectorStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer func() {
		if err := vectorStore.Close(); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	gateway := llm.New(cfg)
	limiter := ratelimit.NewRegistry(cfg.RequestsPerMinute, cfg.TokensPerMinute)

	counter, err := chunk.NewTiktokenCounter(tokenEncoding)
	if err != nil {
		logger.Warn("falling back to word-count token estimation", "error", err)
		counter = nil
	}
	orchestrator := ingest.New(cfg, vectorStore, gateway, limiter, logger, counter)

	dimResult, err := gateway.Embed(ctx, "dimension_check_string")
	if err != nil {
		log.Fatalf("dimension probe: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.Collection, len(dimResult.Vector)); err != nil {
		log.Fatalf("ensure collection: %v", err)
	}

	for _, path := range os.Args[1:] {
		if err := ingestFile(ctx, orchestrator, path); err != nil {
			logger.Error("ingest failed", "path", path, "error", err)
			continue
		}
	}
}

func ingestFile(ctx context.Context, orchestrator *ingest.Orchestrator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	contentType := contentTypeFor(path)
	content := string(data)
	if extract.IsBinary(contentType, path) {
		content = base64.StdEncoding.EncodeToString(data)
	}

	opts := ingest.Options{
		ClientDocumentID: uuid.New(),
		ContentType:      contentType,
		OriginalFilename: filepath.Base(path),
		Content:          content,
	}

	result, err := orchestrator.Ingest(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("%s: documentId=%s fragments=%d\n", path, result.ClientDocumentID, result.FragmentCount)
	return nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (store.VectorStore, error) {
	switch cfg.VectorDB {
	case "milvus":
		return store.NewMilvusStore(ctx, cfg.MilvusAddress, cfg.Collection)
	default:
		return store.NewMemoryStore(), nil
	}
}
