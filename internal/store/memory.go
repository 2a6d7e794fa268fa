package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/internal/model"
)

// MemoryStore is an in-process VectorStore backed by plain maps guarded by a
// single RWMutex. It backs the package's own tests and the memory-only
// deployment mode, where no live Milvus instance is required.
type MemoryStore struct {
	mu         sync.RWMutex
	documents  map[uuid.UUID]model.Document
	fragments  map[uuid.UUID][]model.Fragment
	dimensions map[string]int
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:  make(map[uuid.UUID]model.Document),
		fragments:  make(map[uuid.UUID][]model.Fragment),
		dimensions: make(map[string]int),
	}
}

func (m *MemoryStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dimensions[name]; !ok {
		m.dimensions[name] = dimension
	}
	return nil
}

func (m *MemoryStore) InsertDocument(ctx context.Context, doc model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	copied := doc
	return &copied, nil
}

func (m *MemoryStore) CountFragments(ctx context.Context, documentID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fragments[documentID]), nil
}

func (m *MemoryStore) InsertFragments(ctx context.Context, fragments []model.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fragments {
		m.fragments[f.DocumentID] = append(m.fragments[f.DocumentID], f)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Search performs a linear-scan nearest-neighbor lookup within one document's
// fragments using squared Euclidean distance; it exists to give this
// package's own tests something concrete to assert retrieval against, not as
// a production search path (searchMemories is explicitly out of scope).
func (m *MemoryStore) Search(documentID uuid.UUID, query []float32, topK int) []model.Fragment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := append([]model.Fragment(nil), m.fragments[documentID]...)
	distances := make([]float64, len(candidates))
	for i, f := range candidates {
		distances[i] = squaredDistance(f.Embedding, query)
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if distances[j] < distances[i] {
				distances[i], distances[j] = distances[j], distances[i]
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}

	if topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK]
}

func squaredDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
