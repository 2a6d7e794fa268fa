// Package model holds the data types shared across the ingestion pipeline:
// Document, Chunk and Fragment, as described by the system's data model.
package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Document is a single ingested source, stored once and never duplicated for
// the same id (see the idempotency check in the ingestion orchestrator).
type Document struct {
	ID               uuid.UUID
	ContentType      string
	OriginalFilename string
	FileSize         int64
	WorldID          uuid.UUID
	RoomID           uuid.UUID
	EntityID         uuid.UUID
	AgentID          uuid.UUID

	// Text holds the stored payload: the original base64 bytes for PDFs, the
	// extracted text for everything else.
	Text string

	Metadata  map[string]string
	CreatedAt time.Time
}

// Chunk is a transient text span produced by the chunker. It is never
// persisted on its own; it only exists en route to becoming a Fragment.
type Chunk struct {
	Text     string
	Position int
}

// Fragment is a persisted, searchable, embedded chunk.
type Fragment struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Position   int
	Text       string
	Embedding  []float32

	AgentID  uuid.UUID
	RoomID   uuid.UUID
	WorldID  uuid.UUID
	EntityID uuid.UUID

	Metadata  map[string]string
	Source    string
	CreatedAt time.Time
}

// DocumentMetadata builds the metadata map recorded alongside a Document, per
// the data model's documented shape.
func DocumentMetadata(id uuid.UUID, title, fileExt, source string, timestamp time.Time) map[string]string {
	return map[string]string{
		"type":       "document",
		"documentId": id.String(),
		"title":      title,
		"fileExt":    fileExt,
		"source":     source,
		"timestamp":  timestamp.Format(time.RFC3339),
	}
}

// FragmentMetadata builds the metadata map recorded alongside a Fragment.
func FragmentMetadata(documentID uuid.UUID, position int, source string, timestamp time.Time) map[string]string {
	return map[string]string{
		"type":       "fragment",
		"documentId": documentID.String(),
		"position":   strconv.Itoa(position),
		"timestamp":  timestamp.Format(time.RFC3339),
		"source":     source,
	}
}
