package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kart-io/sentinel-rag/internal/model"
)

// DocumentStore 记录已入库文档的登记信息。
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore 创建文档登记存储。
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create 写入文档登记。
func (s *DocumentStore) Create(ctx context.Context, doc *model.Document) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("register document %s: %w", doc.SourceURI, err)
	}
	return nil
}

// FindByHash 查找同一内容、同一范围与所有者的已登记文档。
func (s *DocumentStore) FindByHash(ctx context.Context, hash string, scope Scope, ownerID string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("hash = ? AND scope = ? AND owner_id = ?", hash, string(scope), ownerID).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document by hash: %w", err)
	}
	return &doc, nil
}

// ListVisible 列出 caller 可见的文档：公共、系统以及 caller 自己的私有文档。
func (s *DocumentStore) ListVisible(ctx context.Context, caller string, offset, limit int) ([]model.Document, int64, error) {
	visible := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.Document{}).
			Where("scope IN ?", []string{string(ScopePublic), string(ScopeSystem)})
		if caller != "" {
			q = q.Or("scope = ? AND owner_id = ?", string(ScopePrivate), caller)
		}
		return q
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	var docs []model.Document
	if err := visible().Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}
