// Package knowledge loads character-declared knowledge strings through the
// ingestion orchestrator at service startup, deduplicating by a deterministic
// content hash and bounding concurrency with a semaphore.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/teilomillet/ragingest/internal/ingest"
	"github.com/teilomillet/ragingest/internal/logging"
)

const (
	maxConcurrentLoads = 10
	knowledgeChunkSize = 1500
	knowledgeOverlap   = 200
	pathPrefix         = "Path: "
)

// Loader drives startup ingestion of character knowledge strings.
type Loader struct {
	Orchestrator *ingest.Orchestrator
	Logger       logging.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewLoader builds a Loader.
func NewLoader(orch *ingest.Orchestrator, logger logging.Logger) *Loader {
	return &Loader{Orchestrator: orch, Logger: logger, seen: make(map[string]bool)}
}

// knowledgeID derives a deterministic id from agentID and the knowledge
// string so reprocessing across restarts is naturally idempotent.
func knowledgeID(agentID uuid.UUID, item string) string {
	sum := sha256.Sum256([]byte(agentID.String() + "|" + item))
	return hex.EncodeToString(sum[:])
}

// LoadAll ingests every item through the orchestrator under a 10-permit
// semaphore, the items running concurrently, and returns once every item has
// been attempted. Load failures are logged and do not stop the other items.
func (l *Loader) LoadAll(ctx context.Context, agentID uuid.UUID, items []string) {
	sem := semaphore.NewWeighted(maxConcurrentLoads)
	var wg sync.WaitGroup

	for _, item := range items {
		id := knowledgeID(agentID, item)

		l.mu.Lock()
		alreadySeen := l.seen[id]
		if !alreadySeen {
			l.seen[id] = true
		}
		l.mu.Unlock()
		if alreadySeen {
			continue
		}

		wg.Add(1)
		go func(item, id string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				if l.Logger != nil {
					l.Logger.Warn("character knowledge semaphore acquire cancelled", "knowledgeId", id, "error", err)
				}
				return
			}
			defer sem.Release(1)

			if err := l.loadOne(ctx, agentID, id, item); err != nil {
				if l.Logger != nil {
					l.Logger.Error("character knowledge load failed", "knowledgeId", id, "error", err)
				}
			}
		}(item, id)
	}

	wg.Wait()
}

func (l *Loader) loadOne(ctx context.Context, agentID uuid.UUID, id, item string) error {
	content := item
	filename := id
	fileExt := "txt"

	if rest, ok := strings.CutPrefix(item, pathPrefix); ok {
		lines := strings.SplitN(rest, "\n", 2)
		path := strings.TrimSpace(lines[0])
		filename = filepath.Base(path)
		fileExt = strings.TrimPrefix(filepath.Ext(path), ".")
		if fileExt == "" {
			fileExt = "txt"
		}
		if len(lines) > 1 {
			content = lines[1]
		} else {
			content = ""
		}
	}

	docID, err := uuid.Parse(id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:32])
	if err != nil {
		return fmt.Errorf("deriving document id from knowledge hash: %w", err)
	}

	opts := ingest.Options{
		ClientDocumentID: docID,
		ContentType:      fmt.Sprintf("text/%s", fileExt),
		OriginalFilename: filename,
		AgentID:          agentID,
		Content:          content,
		ChunkSize:        knowledgeChunkSize,
		ChunkOverlap:     knowledgeOverlap,
	}

	_, err = l.Orchestrator.Ingest(ctx, opts)
	return err
}
