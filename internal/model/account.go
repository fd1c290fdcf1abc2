// Package model provides the persistent data models of sentinel-rag.
package model

import (
	"time"

	"gorm.io/gorm"
)

// Account tiers.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// Account holds a caller's prepaid credit balance.
// Balance is only ever changed with an atomic in-database expression.
type Account struct {
	ID        string  `json:"id" gorm:"primaryKey;type:varchar(64);comment:调用方身份"`
	Email     string  `json:"email" gorm:"size:128;index:idx_email;comment:邮箱"`
	Tier      string  `json:"tier" gorm:"size:16;not null;default:'free';comment:套餐 free/premium"`
	Balance   float64 `json:"balance" gorm:"not null;default:0;comment:剩余积分"`
	CreatedAt int64   `json:"created_at" gorm:"autoCreateTime:milli;comment:创建时间(时间戳)"`
	UpdatedAt int64   `json:"updated_at" gorm:"autoUpdateTime:milli;comment:更新时间(时间戳)"`
}

// TableName returns the table name for GORM.
func (a *Account) TableName() string {
	return "rag_accounts"
}

// BeforeCreate defaults the tier.
func (a *Account) BeforeCreate(tx *gorm.DB) (err error) {
	if a.Tier == "" {
		a.Tier = TierFree
	}
	return
}

// UsageEntry is one billed generation.
type UsageEntry struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID    string    `json:"account_id" gorm:"type:varchar(64);index:idx_usage_account;not null"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	Model        string    `json:"model" gorm:"size:64"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (UsageEntry) TableName() string {
	return "rag_usage"
}
