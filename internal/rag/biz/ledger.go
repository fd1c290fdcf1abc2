package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

// AccountRepository 账户读取与原子扣减。
type AccountRepository interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	Debit(ctx context.Context, entry *model.UsageEntry) (float64, error)
}

// Ledger 按 token 用量计费。
type Ledger struct {
	accounts        AccountRepository
	tokensPerCredit float64
	metrics         *metrics.RAGMetrics
}

// NewLedger 创建计费账本。tokensPerCredit 为每积分对应的 token 数。
func NewLedger(accounts AccountRepository, tokensPerCredit float64, m *metrics.RAGMetrics) *Ledger {
	if tokensPerCredit <= 0 {
		tokensPerCredit = 500
	}
	return &Ledger{accounts: accounts, tokensPerCredit: tokensPerCredit, metrics: m}
}

// Cost 计算 token 用量对应的积分。
func (l *Ledger) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens+outputTokens) / l.tokensPerCredit
}

// Charge 原子扣减 caller 的余额并返回用量与扣减后的存储余额。
// 余额可能因此变为负数，准入检查在生成之前单独进行。
func (l *Ledger) Charge(ctx context.Context, caller, modelName string, inputTokens, outputTokens int) (UsageRecord, float64, error) {
	rec := UsageRecord{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostCredits:  l.Cost(inputTokens, outputTokens),
	}

	balance, err := l.accounts.Debit(ctx, &model.UsageEntry{
		AccountID:    caller,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         rec.CostCredits,
		Model:        modelName,
	})
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordBillingFailure()
		}
		return rec, 0, fmt.Errorf("charge %s: %w", caller, err)
	}

	if l.metrics != nil {
		l.metrics.RecordUsage(inputTokens, outputTokens, rec.CostCredits)
	}
	logger.Debugw("已扣除积分",
		"user_id", caller,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"cost", rec.CostCredits,
		"remaining", balance,
	)
	return rec, balance, nil
}

// countTokens 优先使用供应商报告的用量，否则按字符数估算查询与输出。
func countTokens(usage *llm.TokenUsage, query, output string) (int, int) {
	if usage != nil && (usage.PromptTokens > 0 || usage.CompletionTokens > 0) {
		return usage.PromptTokens, usage.CompletionTokens
	}
	return textutil.EstimateTokens(query), textutil.EstimateTokens(output)
}
