package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/internal/model"
)

const (
	fragmentVectorField = "embedding"
	documentsVectorDim  = 1 // documents carry no real vector; Milvus still requires one vector field per collection
)

// MilvusStore is the VectorStore adapter backed by a real Milvus instance.
// It mirrors this codebase's existing Milvus wrapper: schema built via
// entity.NewSchema, HNSW index via entity.NewIndexHNSW, and one
// entity.Column per field on insert.
type MilvusStore struct {
	client              client.Client
	fragmentsCollection string
	documentsCollection string
	dimension           int
}

// NewMilvusStore connects to address and prepares the adapter; the fragment
// collection itself is created lazily by EnsureCollection.
func NewMilvusStore(ctx context.Context, address, fragmentsCollection string) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("milvus: connect: %w", err)
	}
	return &MilvusStore{
		client:              c,
		fragmentsCollection: fragmentsCollection,
		documentsCollection: fragmentsCollection + "_documents",
	}, nil
}

func (m *MilvusStore) Close() error {
	return m.client.Close()
}

// EnsureCollection creates the fragments collection (with the declared
// vector dimension) and the documents collection if either is missing, then
// indexes and loads the fragments collection so inserts/searches can proceed.
func (m *MilvusStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	m.dimension = dimension
	m.fragmentsCollection = name
	m.documentsCollection = name + "_documents"

	if err := m.ensureFragmentsCollection(ctx, dimension); err != nil {
		return err
	}
	return m.ensureDocumentsCollection(ctx)
}

func (m *MilvusStore) ensureFragmentsCollection(ctx context.Context, dimension int) error {
	has, err := m.client.HasCollection(ctx, m.fragmentsCollection)
	if err != nil {
		return fmt.Errorf("milvus: has collection: %w", err)
	}
	if has {
		return nil
	}

	schema := entity.NewSchema().WithName(m.fragmentsCollection).WithDescription("ingestion fragments")
	schema.WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true))
	schema.WithField(entity.NewField().WithName("documentId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("position").WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535))
	schema.WithField(entity.NewField().WithName("agentId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("roomId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("worldId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("entityId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("source").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("metadata").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
	schema.WithField(entity.NewField().WithName(fragmentVectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dimension)))

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("milvus: create fragments collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.L2, 16, 200)
	if err != nil {
		return fmt.Errorf("milvus: build HNSW index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.fragmentsCollection, fragmentVectorField, idx, false); err != nil {
		return fmt.Errorf("milvus: create index: %w", err)
	}
	return m.client.LoadCollection(ctx, m.fragmentsCollection, false)
}

func (m *MilvusStore) ensureDocumentsCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.documentsCollection)
	if err != nil {
		return fmt.Errorf("milvus: has documents collection: %w", err)
	}
	if has {
		return nil
	}

	schema := entity.NewSchema().WithName(m.documentsCollection).WithDescription("ingested source documents")
	schema.WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true))
	schema.WithField(entity.NewField().WithName("contentType").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("originalFilename").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024))
	schema.WithField(entity.NewField().WithName("fileSize").WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().WithName("agentId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("roomId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("worldId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("entityId").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535))
	schema.WithField(entity.NewField().WithName("metadata").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
	schema.WithField(entity.NewField().WithName("placeholder").WithDataType(entity.FieldTypeFloatVector).WithDim(documentsVectorDim))

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("milvus: create documents collection: %w", err)
	}
	idx, err := entity.NewIndexHNSW(entity.L2, 8, 64)
	if err != nil {
		return fmt.Errorf("milvus: build documents placeholder index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.documentsCollection, "placeholder", idx, false); err != nil {
		return fmt.Errorf("milvus: index documents collection: %w", err)
	}
	return m.client.LoadCollection(ctx, m.documentsCollection, false)
}

func (m *MilvusStore) InsertDocument(ctx context.Context, doc model.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("milvus: marshal document metadata: %w", err)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", []string{doc.ID.String()}),
		entity.NewColumnVarChar("contentType", []string{doc.ContentType}),
		entity.NewColumnVarChar("originalFilename", []string{doc.OriginalFilename}),
		entity.NewColumnInt64("fileSize", []int64{doc.FileSize}),
		entity.NewColumnVarChar("agentId", []string{doc.AgentID.String()}),
		entity.NewColumnVarChar("roomId", []string{doc.RoomID.String()}),
		entity.NewColumnVarChar("worldId", []string{doc.WorldID.String()}),
		entity.NewColumnVarChar("entityId", []string{doc.EntityID.String()}),
		entity.NewColumnVarChar("text", []string{doc.Text}),
		entity.NewColumnVarChar("metadata", []string{string(metadataJSON)}),
		entity.NewColumnFloatVector("placeholder", documentsVectorDim, [][]float32{make([]float32, documentsVectorDim)}),
	}

	_, err = m.client.Insert(ctx, m.documentsCollection, "", columns...)
	if err != nil {
		return fmt.Errorf("milvus: insert document: %w", err)
	}
	return m.client.Flush(ctx, m.documentsCollection, false)
}

func (m *MilvusStore) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	expr := fmt.Sprintf("id == \"%s\"", id.String())
	columns := []string{"id", "contentType", "originalFilename", "fileSize", "agentId", "roomId", "worldId", "entityId", "text", "metadata"}

	result, err := m.client.Query(ctx, m.documentsCollection, nil, expr, columns)
	if err != nil {
		return nil, fmt.Errorf("milvus: query document: %w", err)
	}
	if len(result) == 0 || result[0].Len() == 0 {
		return nil, nil
	}

	doc := &model.Document{ID: id}
	for _, col := range result {
		value, err := col.Get(0)
		if err != nil {
			continue
		}
		switch col.Name() {
		case "contentType":
			doc.ContentType = value.(string)
		case "originalFilename":
			doc.OriginalFilename = value.(string)
		case "fileSize":
			doc.FileSize = value.(int64)
		case "agentId":
			doc.AgentID, _ = uuid.Parse(value.(string))
		case "roomId":
			doc.RoomID, _ = uuid.Parse(value.(string))
		case "worldId":
			doc.WorldID, _ = uuid.Parse(value.(string))
		case "entityId":
			doc.EntityID, _ = uuid.Parse(value.(string))
		case "text":
			doc.Text = value.(string)
		case "metadata":
			var meta map[string]string
			if err := json.Unmarshal([]byte(value.(string)), &meta); err == nil {
				doc.Metadata = meta
			}
		}
	}
	return doc, nil
}

func (m *MilvusStore) CountFragments(ctx context.Context, documentID uuid.UUID) (int, error) {
	expr := fmt.Sprintf("documentId == \"%s\"", documentID.String())
	result, err := m.client.Query(ctx, m.fragmentsCollection, nil, expr, []string{"id"})
	if err != nil {
		return 0, fmt.Errorf("milvus: count fragments: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Len(), nil
}

func (m *MilvusStore) InsertFragments(ctx context.Context, fragments []model.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	ids := make([]string, len(fragments))
	documentIDs := make([]string, len(fragments))
	positions := make([]int64, len(fragments))
	texts := make([]string, len(fragments))
	agentIDs := make([]string, len(fragments))
	roomIDs := make([]string, len(fragments))
	worldIDs := make([]string, len(fragments))
	entityIDs := make([]string, len(fragments))
	sources := make([]string, len(fragments))
	metadatas := make([]string, len(fragments))
	vectors := make([][]float32, len(fragments))

	for i, f := range fragments {
		ids[i] = f.ID.String()
		documentIDs[i] = f.DocumentID.String()
		positions[i] = int64(f.Position)
		texts[i] = f.Text
		agentIDs[i] = f.AgentID.String()
		roomIDs[i] = f.RoomID.String()
		worldIDs[i] = f.WorldID.String()
		entityIDs[i] = f.EntityID.String()
		sources[i] = f.Source
		metaJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("milvus: marshal fragment metadata: %w", err)
		}
		metadatas[i] = string(metaJSON)
		vectors[i] = f.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("documentId", documentIDs),
		entity.NewColumnInt64("position", positions),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("agentId", agentIDs),
		entity.NewColumnVarChar("roomId", roomIDs),
		entity.NewColumnVarChar("worldId", worldIDs),
		entity.NewColumnVarChar("entityId", entityIDs),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("metadata", metadatas),
		entity.NewColumnFloatVector(fragmentVectorField, m.dimension, vectors),
	}

	if _, err := m.client.Insert(ctx, m.fragmentsCollection, "", columns...); err != nil {
		return fmt.Errorf("milvus: insert fragments: %w", err)
	}
	return m.client.Flush(ctx, m.fragmentsCollection, false)
}
