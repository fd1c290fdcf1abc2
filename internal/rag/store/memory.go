package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore 是进程内的暴力检索向量存储，用于开发与测试。
// 距离为平方欧氏距离，与 Milvus L2 索引一致。
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    []Chunk
}

// NewMemoryStore 创建内存向量存储。dimension 为 0 时不校验维度。
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension}
}

// EnsureCollection 无需操作。
func (s *MemoryStore) EnsureCollection(context.Context) error { return nil }

// Insert 写入文档块副本。
func (s *MemoryStore) Insert(_ context.Context, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if s.dimension > 0 && len(c.Vector) != s.dimension {
			return fmt.Errorf("chunk %s: vector dimension %d, store expects %d", c.ID, len(c.Vector), s.dimension)
		}
		cp := *c
		cp.Vector = append([]float32(nil), c.Vector...)
		s.chunks = append(s.chunks, cp)
	}
	return nil
}

// Search 计算全部距离并返回最近的 k 个。
func (s *MemoryStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(c.Vector) != len(vector) {
			continue
		}
		hit := Hit{Chunk: c, Distance: squaredL2(c.Vector, vector)}
		hit.Chunk.Vector = nil
		hits = append(hits, hit)
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count 返回文档块数量。
func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

// Close 无需操作。
func (s *MemoryStore) Close(context.Context) error { return nil }

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

var _ VectorStore = (*MemoryStore)(nil)
