package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/sentinel-rag/internal/model"
)

// AccountStore 基于 gorm 的账户与计费存储。
type AccountStore struct {
	db *gorm.DB
}

// NewAccountStore 创建账户存储。
func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get 返回账户，不存在时返回 ErrNotFound。
func (s *AccountStore) Get(ctx context.Context, id string) (*model.Account, error) {
	var acct model.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &acct, nil
}

// EnsureAccount 首次出现的身份以 credits 初始积分开户；已存在的账户原样返回。
func (s *AccountStore) EnsureAccount(ctx context.Context, id, email string, credits float64) (*model.Account, error) {
	acct := &model.Account{ID: id, Email: email, Tier: model.TierFree, Balance: credits}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(acct).Error
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// SetTier 修改套餐。
func (s *AccountStore) SetTier(ctx context.Context, id, tier string) error {
	res := s.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Update("tier", tier)
	if res.Error != nil {
		return fmt.Errorf("set tier for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Debit 在同一事务内原子扣减余额、记录用量，并读回扣减后的存储值。
// 扣减使用 balance = balance - ? 表达式，不读取后回写，并发请求不会丢失更新。
func (s *AccountStore) Debit(ctx context.Context, entry *model.UsageEntry) (float64, error) {
	var balance float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Account{}).
			Where("id = ?", entry.AccountID).
			Update("balance", gorm.Expr("balance - ?", entry.Cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		var acct model.Account
		if err := tx.Select("balance").Where("id = ?", entry.AccountID).Take(&acct).Error; err != nil {
			return err
		}
		balance = acct.Balance
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("debit account %s: %w", entry.AccountID, err)
	}
	return balance, nil
}

// Usage 返回账户最近的用量记录（新在前）。
func (s *AccountStore) Usage(ctx context.Context, id string, limit int) ([]model.UsageEntry, error) {
	var entries []model.UsageEntry
	err := s.db.WithContext(ctx).
		Where("account_id = ?", id).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list usage for %s: %w", id, err)
	}
	return entries, nil
}
