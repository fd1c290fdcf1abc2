package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/id"
	"github.com/kart-io/sentinel-rag/pkg/validator"
)

// Record 待入库的文档记录。
type Record struct {
	Content   string `json:"content" validate:"notblank"`
	SourceURI string `json:"source_uri" validate:"required,trimmed,max=512"`
	Scope     string `json:"scope" validate:"scope"`
	OwnerID   string `json:"owner_id" validate:"required_if=Scope private,nowhitespace,max=64"`
}

// IngestResult 入库结果。
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	// Duplicate 为 true 表示相同内容已入库，本次未写入。
	Duplicate bool `json:"duplicate"`
}

// DocumentRepository 文档登记表。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByHash(ctx context.Context, hash string, scope store.Scope, ownerID string) (*model.Document, error)
}

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// ChunkSize 文本块大小。
	ChunkSize int
	// ChunkOverlap 块重叠大小。
	ChunkOverlap int
	// BatchSize 每次嵌入调用的文本块数。
	BatchSize int
}

// Indexer 负责文档切分、嵌入与入库。
type Indexer struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	docs     DocumentRepository
	splitter *textutil.Splitter
	cache    *ResultCache
	config   IndexerConfig
	metrics  *metrics.RAGMetrics
}

// NewIndexer 创建索引器实例。cache 可以为 nil，非空时新文档入库后清空检索缓存。
func NewIndexer(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	docs DocumentRepository,
	cache *ResultCache,
	config IndexerConfig,
	m *metrics.RAGMetrics,
) *Indexer {
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	return &Indexer{
		store:    vectorStore,
		embedder: embedder,
		docs:     docs,
		splitter: textutil.NewSplitter(config.ChunkSize, config.ChunkOverlap),
		cache:    cache,
		config:   config,
		metrics:  m,
	}
}

// Ingest 校验记录，切分、嵌入并写入向量索引，最后登记文档。
// 相同范围与所有者下内容完全相同的记录只入库一次。
func (i *Indexer) Ingest(ctx context.Context, rec Record) (*IngestResult, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "indexer.ingest",
		attribute.String("rag.source", rec.SourceURI),
		attribute.String("rag.scope", rec.Scope),
	)
	defer span.End()

	start := time.Now()
	res, err := i.ingest(ctx, rec)
	if i.metrics != nil && (err != nil || !res.Duplicate) {
		chunks := 0
		if res != nil {
			chunks = res.Chunks
		}
		i.metrics.RecordIndexing(1, chunks, err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Global().WithCtx(ctx).Errorw("文档入库失败", "source_uri", rec.SourceURI, "error", err.Error())
		return nil, err
	}

	logger.Infow("文档入库完成",
		"source_uri", rec.SourceURI,
		"scope", rec.Scope,
		"document_id", res.DocumentID,
		"chunks", res.Chunks,
		"duplicate", res.Duplicate,
		"duration", time.Since(start).String(),
	)
	return res, nil
}

func (i *Indexer) ingest(ctx context.Context, rec Record) (*IngestResult, error) {
	scope := store.Scope(rec.Scope)
	owner := rec.OwnerID
	if scope != store.ScopePrivate {
		owner = ""
	}

	hash := textutil.HashString(rec.Content)
	existing, err := i.docs.FindByHash(ctx, hash, scope, owner)
	if err == nil {
		return &IngestResult{DocumentID: existing.ID, Chunks: existing.ChunkNum, Duplicate: true}, nil
	}
	if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	texts, err := i.splitter.Split(rec.Content)
	if err != nil {
		return nil, errors.ErrRAGIndexFailed.WithCause(err)
	}
	if len(texts) == 0 {
		return nil, errors.ErrRAGEmptyContent
	}

	vectors, err := i.embed(ctx, texts)
	if err != nil {
		return nil, errors.ErrRAGIndexFailed.WithCause(err)
	}

	docID := id.New()
	chunks := make([]*store.Chunk, len(texts))
	for n, text := range texts {
		chunks[n] = &store.Chunk{
			ID:         id.Chunk(docID, n),
			DocumentID: docID,
			Text:       text,
			SourceURI:  rec.SourceURI,
			Scope:      scope,
			OwnerID:    owner,
			Vector:     vectors[n],
		}
	}
	if err := i.store.Insert(ctx, chunks); err != nil {
		return nil, errors.ErrRAGIndexFailed.WithCause(err)
	}

	doc := &model.Document{
		ID:        docID,
		SourceURI: rec.SourceURI,
		Scope:     string(scope),
		OwnerID:   owner,
		Hash:      hash,
		ChunkNum:  len(chunks),
	}
	if err := i.docs.Create(ctx, doc); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	if err := i.cache.Clear(ctx); err != nil {
		logger.Warnw("清除检索缓存失败", "error", err.Error())
	}
	return &IngestResult{DocumentID: docID, Chunks: len(chunks)}, nil
}

// embed 分批嵌入文本块。
func (i *Indexer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.config.BatchSize {
		end := min(start+i.config.BatchSize, len(texts))
		batch, err := i.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// validateRecord 将字段校验错误映射为对应的错误码。
func validateRecord(rec Record) error {
	verrs := validator.StructWithLang(rec, validator.LangEN)
	if !verrs.HasErrors() {
		return nil
	}
	switch verrs.FirstField() {
	case "content":
		return errors.ErrRAGEmptyContent
	case "scope":
		return errors.ErrRAGInvalidScope
	case "owner_id":
		if rec.OwnerID == "" {
			return errors.ErrRAGOwnerRequired
		}
	}
	return errors.ErrRAGInvalidRequest.WithMessage(verrs.First())
}
