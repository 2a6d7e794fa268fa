// Package store persists Documents and Fragments behind a VectorStore
// interface, with a Milvus-backed adapter for production and an in-memory
// adapter for tests and the memory-only deployment mode.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/internal/model"
)

// VectorStore is the persistence contract the orchestrator, worker pool, and
// character knowledge loader all call through.
type VectorStore interface {
	// EnsureCollection idempotently creates the fragment collection with the
	// given vector dimension if it does not already exist.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	InsertDocument(ctx context.Context, doc model.Document) error

	// GetDocument returns nil, nil when no document with this id exists,
	// the idiom the orchestrator's idempotency check relies on.
	GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)

	CountFragments(ctx context.Context, documentID uuid.UUID) (int, error)

	InsertFragments(ctx context.Context, fragments []model.Fragment) error

	Close() error
}
