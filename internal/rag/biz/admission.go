package biz

import (
	"context"
	stderrors "errors"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
)

// AdmissionConfig 准入配置。
type AdmissionConfig struct {
	// Threshold 开始对话所需的最低余额。
	Threshold float64
	// PremiumMinBalance 高级套餐使用高级模型所需的最低余额。
	PremiumMinBalance float64
	// StandardModel 标准模型名，空值表示沿用供应商默认模型。
	StandardModel string
	// PremiumModel 高级模型名。
	PremiumModel string
}

// Admission 在生成开始之前检查身份与余额。
type Admission struct {
	accounts AccountRepository
	config   AdmissionConfig
	metrics  *metrics.RAGMetrics
}

// NewAdmission 创建准入检查器。
func NewAdmission(accounts AccountRepository, config AdmissionConfig, m *metrics.RAGMetrics) *Admission {
	return &Admission{accounts: accounts, config: config, metrics: m}
}

// Admit 校验调用方并返回其账户。
// 空身份返回 ErrRAGIdentityRequired，账户不存在返回 ErrRAGAccountNotFound，
// 余额低于阈值返回 ErrRAGInsufficientCredits。
func (a *Admission) Admit(ctx context.Context, caller string) (*model.Account, error) {
	if caller == "" {
		a.reject("identity")
		return nil, errors.ErrRAGIdentityRequired
	}

	acct, err := a.accounts.Get(ctx, caller)
	if stderrors.Is(err, store.ErrNotFound) {
		a.reject("account")
		return nil, errors.ErrRAGAccountNotFound
	}
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	if acct.Balance < a.config.Threshold {
		a.reject("credits")
		return nil, errors.ErrRAGInsufficientCredits.WithMessagef(
			"Insufficient credits (%.2f), at least %.2f required. Please upgrade your plan.", acct.Balance, a.config.Threshold)
	}
	return acct, nil
}

// SelectModel 按套餐与余额选择模型，每个请求只选择一次。
func (a *Admission) SelectModel(acct *model.Account) string {
	if acct != nil && acct.Tier == model.TierPremium && acct.Balance >= a.config.PremiumMinBalance && a.config.PremiumModel != "" {
		return a.config.PremiumModel
	}
	return a.config.StandardModel
}

func (a *Admission) reject(reason string) {
	if a.metrics != nil {
		a.metrics.RecordRejection(reason)
	}
}
