package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/pkg/utils/id"
)

// ConversationStore 基于 gorm 的会话存储。消息只追加，不修改。
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore 创建会话存储。
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create 新建会话。
func (s *ConversationStore) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	conv := &model.Conversation{ID: id.New(), UserID: userID, Title: title}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Get 返回会话，不存在时返回 ErrNotFound。
func (s *ConversationStore) Get(ctx context.Context, convID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", convID).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", convID, err)
	}
	return &conv, nil
}

// ListByUser 按最近更新时间倒序列出用户的会话。
func (s *ConversationStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// AppendTurn 追加一条消息并刷新会话的更新时间。
func (s *ConversationStore) AppendTurn(ctx context.Context, convID, role, content string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).Where("id = ?", convID).Update("updated_at", time.Now())
		if res.Error != nil {
			return fmt.Errorf("touch conversation %s: %w", convID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		msg := &model.Message{ID: id.New(), ConversationID: convID, Role: role, Content: content}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append turn to %s: %w", convID, err)
		}
		return nil
	})
}

// GetRecentTurns 返回最近的 limit 条消息，新消息在前；调用方负责反转。
func (s *ConversationStore) GetRecentTurns(ctx context.Context, convID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("recent turns of %s: %w", convID, err)
	}
	return msgs, nil
}

// Messages 按时间正序返回会话全部消息。
func (s *ConversationStore) Messages(ctx context.Context, convID string) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("messages of %s: %w", convID, err)
	}
	return msgs, nil
}
