package biz

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kart-io/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	logopts "github.com/kart-io/sentinel-rag/pkg/options/logger"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
)

type indexerFixture struct {
	vectors *store.MemoryStore
	docs    *store.DocumentStore
	emb     *fakeEmbedder
	metrics *metrics.RAGMetrics
	indexer *Indexer
}

func newIndexerFixture(t *testing.T) *indexerFixture {
	t.Helper()
	f := &indexerFixture{
		vectors: store.NewMemoryStore(3),
		docs:    store.NewDocumentStore(newTestDB(t)),
		emb:     &fakeEmbedder{},
		metrics: metrics.New(),
	}
	f.indexer = NewIndexer(f.vectors, f.emb, f.docs, nil, IndexerConfig{ChunkSize: 200, ChunkOverlap: 20, BatchSize: 2}, f.metrics)
	return f
}

func (f *indexerFixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.vectors.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestIngestPublicRecordIsSearchable(t *testing.T) {
	f := newIndexerFixture(t)
	res, err := f.indexer.Ingest(context.Background(), Record{
		Content:   "The housing program targets 70% home ownership by 2030.",
		SourceURI: "housing.pdf",
		Scope:     "public",
		OwnerID:   "ignored",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, 1, res.Chunks)
	assert.False(t, res.Duplicate)

	r := NewRetriever(f.vectors, f.emb, nil, nil, nil, RetrieverConfig{}, nil)
	results := r.Search(context.Background(), []string{"housing"}, 5, "anyone")
	require.Len(t, results, 1)
	assert.Equal(t, "housing.pdf", results[0].Source)

	docs, total, err := f.docs.ListVisible(context.Background(), "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Empty(t, docs[0].OwnerID, "owner is dropped for non-private records")
}

func TestIngestLogsSourceURI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.log")
	opts := logopts.NewOptions()
	opts.Format = "json"
	opts.OutputPaths = []string{path}
	log, err := opts.CreateLogger()
	require.NoError(t, err)
	prev := logger.Global()
	logger.SetGlobal(log)
	t.Cleanup(func() { logger.SetGlobal(prev) })

	f := newIndexerFixture(t)
	_, err = f.indexer.Ingest(context.Background(), Record{
		Content:   "The housing program targets 70% home ownership by 2030.",
		SourceURI: "official.pdf",
		Scope:     "public",
	})
	require.NoError(t, err)
	_ = log.Flush()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var line string
	for _, l := range strings.Split(string(raw), "\n") {
		if strings.Contains(l, "文档入库完成") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Contains(t, line, `"source_uri":"official.pdf"`)
	assert.NotContains(t, line, `"caller":"official.pdf"`)
}

func TestIngestSplitsAndBatches(t *testing.T) {
	f := newIndexerFixture(t)
	var paragraphs []string
	for i := 0; i < 5; i++ {
		paragraphs = append(paragraphs, strings.Repeat("housing policy article ", 8))
	}
	res, err := f.indexer.Ingest(context.Background(), Record{
		Content:   strings.Join(paragraphs, "\n\n"),
		SourceURI: "law.txt",
		Scope:     "system",
	})
	require.NoError(t, err)
	assert.Greater(t, res.Chunks, 1)
	assert.EqualValues(t, res.Chunks, f.count(t))
	assert.EqualValues(t, res.Chunks, f.emb.calls.Load())
}

func TestIngestDuplicate(t *testing.T) {
	f := newIndexerFixture(t)
	rec := Record{Content: "internal memo", SourceURI: "memo.txt", Scope: "private", OwnerID: "ownerA"}

	first, err := f.indexer.Ingest(context.Background(), rec)
	require.NoError(t, err)
	second, err := f.indexer.Ingest(context.Background(), rec)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.EqualValues(t, 1, f.count(t))

	// same text owned by someone else is a different document
	rec.OwnerID = "ownerB"
	third, err := f.indexer.Ingest(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
	assert.EqualValues(t, 2, f.count(t))
}

func TestIngestValidation(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		code int
	}{
		{"empty content", Record{Content: "  \n", SourceURI: "a", Scope: "public"}, errors.ErrRAGEmptyContent.Code},
		{"bad scope", Record{Content: "x", SourceURI: "a", Scope: "team"}, errors.ErrRAGInvalidScope.Code},
		{"missing scope", Record{Content: "x", SourceURI: "a"}, errors.ErrRAGInvalidScope.Code},
		{"private without owner", Record{Content: "x", SourceURI: "a", Scope: "private"}, errors.ErrRAGOwnerRequired.Code},
		{"owner with spaces", Record{Content: "x", SourceURI: "a", Scope: "private", OwnerID: "a b"}, errors.ErrRAGInvalidRequest.Code},
		{"missing source", Record{Content: "x", Scope: "public"}, errors.ErrRAGInvalidRequest.Code},
		{"padded source", Record{Content: "x", SourceURI: " a ", Scope: "public"}, errors.ErrRAGInvalidRequest.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIndexerFixture(t)
			_, err := f.indexer.Ingest(context.Background(), tt.rec)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
			assert.Zero(t, f.count(t))
			assert.Zero(t, f.emb.calls.Load())
		})
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	f := newIndexerFixture(t)
	f.emb.err = stderrors.New("quota exceeded")

	_, err := f.indexer.Ingest(context.Background(), Record{Content: "housing", SourceURI: "h", Scope: "public"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGIndexFailed.Code))
	assert.Zero(t, f.count(t))

	_, total, err := f.docs.ListVisible(context.Background(), "", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total, "failed documents are not registered")
}
