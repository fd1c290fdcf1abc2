// Package store 提供检索链路使用的持久化实现：向量索引（Milvus / 内存）
// 以及账户、会话、文档登记表（gorm）。
package store

import (
	"context"
	"errors"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

// Scope 文档块的可见范围。
type Scope string

const (
	// ScopePublic 所有调用方可见。
	ScopePublic Scope = "public"
	// ScopeSystem 系统语料，所有调用方可见。
	ScopeSystem Scope = "system"
	// ScopePrivate 仅所有者可见。
	ScopePrivate Scope = "private"
)

// Valid 判断可见范围是否为已知取值。
func (s Scope) Valid() bool {
	switch s {
	case ScopePublic, ScopeSystem, ScopePrivate:
		return true
	}
	return false
}

// VisibleTo 判断拥有者为 owner、范围为 s 的文档块对 caller 是否可见。
// 未知范围一律不可见；私有块要求 owner 非空且与 caller 相同。
func (s Scope) VisibleTo(owner, caller string) bool {
	switch s {
	case ScopePublic, ScopeSystem:
		return true
	case ScopePrivate:
		return owner != "" && owner == caller
	default:
		return false
	}
}

// Chunk 表示已入库的文档块，入库后不可变。
type Chunk struct {
	// ID 文档块 ID。
	ID string
	// DocumentID 所属文档 ID。
	DocumentID string
	// Text 文档块正文。
	Text string
	// SourceURI 来源地址。
	SourceURI string
	// Scope 可见范围。
	Scope Scope
	// OwnerID 所有者，仅私有块有意义。
	OwnerID string
	// Vector 嵌入向量。
	Vector []float32
}

// Hit 表示一次近邻检索命中，Distance 越小越相似。
type Hit struct {
	Chunk    Chunk
	Distance float64
}

// VectorStore 定义向量索引接口。
type VectorStore interface {
	// EnsureCollection 确保集合存在并已加载。
	EnsureCollection(ctx context.Context) error

	// Insert 批量写入文档块。
	Insert(ctx context.Context, chunks []*Chunk) error

	// Search 返回距离最近的 k 个文档块（不做访问控制过滤）。
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Count 返回索引中的文档块数量。
	Count(ctx context.Context) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
