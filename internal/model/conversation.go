package model

import (
	"time"
)

// Conversation groups the turns of one chat thread.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;index:idx_conv_user"`
	Title     string    `json:"title" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;index:idx_conv_user"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "rag_conversations"
}

// Message is one append-only turn of a conversation.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	ConversationID string    `json:"conversation_id" gorm:"type:varchar(64);not null;index:idx_msg_conv"`
	Role           string    `json:"role" gorm:"type:varchar(16);not null"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_msg_conv"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "rag_messages"
}

// All lists every model for schema migration.
func All() []interface{} {
	return []interface{}{&Account{}, &UsageEntry{}, &Document{}, &Conversation{}, &Message{}}
}
