package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/ragingest/internal/model"
)

func TestMemoryStoreGetDocumentReturnsNilWhenAbsent(t *testing.T) {
	s := NewMemoryStore()
	doc, err := s.GetDocument(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemoryStoreRoundTripsDocument(t *testing.T) {
	s := NewMemoryStore()
	id := uuid.New()
	doc := model.Document{ID: id, ContentType: "text/plain", OriginalFilename: "a.txt", Text: "hello"}
	require.NoError(t, s.InsertDocument(context.Background(), doc))

	got, err := s.GetDocument(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Text)
}

func TestMemoryStoreCountsAndInsertsFragments(t *testing.T) {
	s := NewMemoryStore()
	docID := uuid.New()

	count, err := s.CountFragments(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	fragments := []model.Fragment{
		{ID: uuid.New(), DocumentID: docID, Position: 0, Text: "a", Embedding: []float32{1, 0}},
		{ID: uuid.New(), DocumentID: docID, Position: 1, Text: "b", Embedding: []float32{0, 1}},
	}
	require.NoError(t, s.InsertFragments(context.Background(), fragments))

	count, err = s.CountFragments(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStoreSearchReturnsClosestByDistance(t *testing.T) {
	s := NewMemoryStore()
	docID := uuid.New()
	fragments := []model.Fragment{
		{ID: uuid.New(), DocumentID: docID, Position: 0, Text: "far", Embedding: []float32{10, 10}},
		{ID: uuid.New(), DocumentID: docID, Position: 1, Text: "near", Embedding: []float32{1, 1}},
	}
	require.NoError(t, s.InsertFragments(context.Background(), fragments))

	results := s.Search(docID, []float32{1, 1}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].Text)
}

func TestMemoryStoreEnsureCollectionIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(context.Background(), "fragments", 1536))
	require.NoError(t, s.EnsureCollection(context.Background(), "fragments", 1536))
	assert.Equal(t, 1536, s.dimensions["fragments"])
}
