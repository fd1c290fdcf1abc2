package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/sentinel-rag/pkg/component/milvus"
)

// Milvus 集合中的标量字段。
const (
	fieldDocumentID = "document_id"
	fieldText       = "text"
	fieldSourceURI  = "source_uri"
	fieldScope      = "scope"
	fieldOwnerID    = "owner_id"
)

var outputFields = []string{fieldDocumentID, fieldText, fieldSourceURI, fieldScope, fieldOwnerID}

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client     *milvus.Client
	collection string
	dimension  int
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, collection string, dimension int) *MilvusStore {
	return &MilvusStore{client: client, collection: collection, dimension: dimension}
}

// EnsureCollection 创建并加载 Milvus 集合。
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "sentinel-rag document chunks",
		Dimension:   s.dimension,
		MetaFields: []milvus.MetaField{
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldText, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldSourceURI, DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: fieldScope, DataType: entity.FieldTypeVarChar, MaxLen: 16},
			{Name: fieldOwnerID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
		},
	})
}

// Insert 批量插入文档块到 Milvus。
func (s *MilvusStore) Insert(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	data := &milvus.InsertData{
		IDs:        make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]string{
			fieldDocumentID: make([]string, len(chunks)),
			fieldText:       make([]string, len(chunks)),
			fieldSourceURI:  make([]string, len(chunks)),
			fieldScope:      make([]string, len(chunks)),
			fieldOwnerID:    make([]string, len(chunks)),
		},
	}
	for i, c := range chunks {
		if len(c.Vector) != s.dimension {
			return fmt.Errorf("chunk %s: vector dimension %d, collection expects %d", c.ID, len(c.Vector), s.dimension)
		}
		data.IDs[i] = c.ID
		data.Embeddings[i] = c.Vector
		data.Metadata[fieldDocumentID][i] = c.DocumentID
		data.Metadata[fieldText][i] = c.Text
		data.Metadata[fieldSourceURI][i] = c.SourceURI
		data.Metadata[fieldScope][i] = string(c.Scope)
		data.Metadata[fieldOwnerID][i] = c.OwnerID
	}

	if err := s.client.Insert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Search 执行向量相似度搜索。Milvus L2 返回的分数即距离。
func (s *MilvusStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	results, err := s.client.Search(ctx, s.collection, vector, k, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Chunk: Chunk{
				ID:         r.ID,
				DocumentID: r.Metadata[fieldDocumentID],
				Text:       r.Metadata[fieldText],
				SourceURI:  r.Metadata[fieldSourceURI],
				Scope:      Scope(r.Metadata[fieldScope]),
				OwnerID:    r.Metadata[fieldOwnerID],
			},
			Distance: float64(r.Score),
		}
	}
	return hits, nil
}

// Count 获取集合中的文档块数量。
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, s.collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
