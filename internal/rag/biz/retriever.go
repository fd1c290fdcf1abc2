package biz

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/infra/pool"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

const (
	fusionBoost  = 0.05
	keywordBoost = 0.05
)

// DefaultPriorityTerms 文档块中每出现一个即加 0.05 分。
var DefaultPriorityTerms = []string{
	"pillar", "society", "economy", "nation", "law", "article", "vision 2030",
	"ركيزة", "مجتمع", "اقتصاد", "وطن", "نظام", "مادة", "رؤية 2030",
}

// DefaultTopicTerms 原始查询包含任一词时才启用关键词加分。
var DefaultTopicTerms = []string{
	"pillar", "what is", "vision",
	"ركيزة", "ما هي", "ما هو", "رؤية",
}

// Reranker 对融合后的候选重新排序，返回的集合必须与输入相同。
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) []Candidate
}

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// MinFetchK 每个变体在过滤前至少获取的近邻数。
	MinFetchK int
	// JudgeCandidates 交给相关性评审的候选数。
	JudgeCandidates int
	// PriorityTerms 关键词加分词表。
	PriorityTerms []string
	// TopicTerms 启用关键词加分的查询词表。
	TopicTerms []string
}

// Retriever 负责多变体检索、访问控制、融合与打分。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	reranker Reranker
	pool     *pool.Pool
	cache    *ResultCache
	config   RetrieverConfig
	metrics  *metrics.RAGMetrics
}

// NewRetriever 创建检索器。p 为 nil 时变体检索直接使用 goroutine；cache 可以为 nil。
func NewRetriever(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	reranker Reranker,
	p *pool.Pool,
	cache *ResultCache,
	config RetrieverConfig,
	m *metrics.RAGMetrics,
) *Retriever {
	if config.MinFetchK <= 0 {
		config.MinFetchK = 20
	}
	if config.JudgeCandidates <= 0 {
		config.JudgeCandidates = 10
	}
	if config.PriorityTerms == nil {
		config.PriorityTerms = DefaultPriorityTerms
	}
	if config.TopicTerms == nil {
		config.TopicTerms = DefaultTopicTerms
	}
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		reranker: reranker,
		pool:     p,
		cache:    cache,
		config:   config,
		metrics:  m,
	}
}

// FetchK 返回每个变体需要获取的近邻数。
func (r *Retriever) FetchK(topK int) int {
	return max(r.config.MinFetchK, topK*2)
}

// Search 检索对 caller 可见、按得分降序排列的最多 topK 个结果。
// variants 的第一个元素视为原始查询。所有变体都失败时返回空结果，不返回错误。
func (r *Retriever) Search(ctx context.Context, variants []string, topK int, caller string) []ScoredResult {
	variants = dedupeVariants(variants)
	if topK <= 0 || len(variants) == 0 {
		return []ScoredResult{}
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "retriever.search",
		attribute.Int("rag.variants", len(variants)),
		attribute.Int("rag.top_k", topK),
	)
	defer span.End()

	if cached, ok := r.cache.Get(ctx, caller, topK, variants); ok {
		r.recordCache(true)
		return cached
	}
	r.recordCache(false)

	start := time.Now()
	results := r.search(ctx, variants, topK, caller)
	if r.metrics != nil {
		r.metrics.RecordRetrieval(time.Since(start), len(results))
	}
	span.SetAttributes(attribute.Int("rag.results", len(results)))

	if len(results) > 0 {
		r.cache.Set(ctx, caller, topK, variants, results)
	}
	return results
}

func (r *Retriever) search(ctx context.Context, variants []string, topK int, caller string) []ScoredResult {
	hits := r.fetch(ctx, variants, r.FetchK(topK))
	candidates := r.fuse(variants[0], hits, caller)
	if len(candidates) == 0 {
		return []ScoredResult{}
	}

	if len(candidates) > r.config.JudgeCandidates {
		candidates = candidates[:r.config.JudgeCandidates]
	}
	if len(candidates) >= 2 && r.reranker != nil {
		candidates = r.reranker.Rerank(ctx, variants[0], candidates)
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]ScoredResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, ScoredResult{Text: c.Chunk.Text, Source: c.Chunk.SourceURI, Score: c.Score})
	}
	return out
}

// fetch 并发地为每个变体嵌入并检索，结果按变体下标存放。失败的变体结果为 nil。
func (r *Retriever) fetch(ctx context.Context, variants []string, fetchK int) [][]store.Hit {
	hits := make([][]store.Hit, len(variants))
	failed := make([]*Failure, len(variants))

	g := pool.NewGroup(r.pool)
	for i, v := range variants {
		g.Go(func() {
			vec, err := r.embedder.EmbedSingle(ctx, v)
			if err != nil {
				failed[i] = newFailure(StageEmbed, err)
				return
			}
			res, err := r.store.Search(ctx, vec, fetchK)
			if err != nil {
				failed[i] = newFailure(StageSearch, err)
				return
			}
			hits[i] = res
		})
	}
	g.Wait()

	n := 0
	for _, f := range failed {
		if f != nil {
			n++
			reportFailure(ctx, r.metrics, f)
		}
	}
	if n == len(variants) {
		logger.Global().WithCtx(ctx).Warnw("所有查询变体检索失败，返回空结果", "variants", len(variants))
	}
	return hits
}

// fuse 过滤不可见的命中，按去空白后的文本合并，并计算启发式得分。
// 结果按得分降序排列，得分相同时保持首次出现顺序。
func (r *Retriever) fuse(query string, hits [][]store.Hit, caller string) []Candidate {
	type entry struct {
		cand        Candidate
		lastVariant int
	}

	index := make(map[string]int)
	var entries []*entry
	for vi, variantHits := range hits {
		for _, h := range variantHits {
			if !h.Chunk.Scope.VisibleTo(h.Chunk.OwnerID, caller) {
				continue
			}
			key := strings.TrimSpace(h.Chunk.Text)
			if pos, ok := index[key]; ok {
				e := entries[pos]
				e.cand.Distance = min(e.cand.Distance, h.Distance)
				if e.lastVariant != vi {
					e.cand.MatchCount++
					e.lastVariant = vi
				}
				continue
			}
			index[key] = len(entries)
			entries = append(entries, &entry{
				cand:        Candidate{Chunk: h.Chunk, Distance: h.Distance, MatchCount: 1},
				lastVariant: vi,
			})
		}
	}

	topical := textutil.ContainsAnyFold(query, r.config.TopicTerms)
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		c := e.cand
		c.Score = 1/(1+c.Distance) + float64(c.MatchCount-1)*fusionBoost
		if topical {
			c.Score += keywordBoost * float64(textutil.CountPresentFold(c.Chunk.Text, r.config.PriorityTerms))
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func (r *Retriever) recordCache(hit bool) {
	if r.metrics != nil && r.cache.Enabled() {
		r.metrics.RecordCache(hit)
	}
}
