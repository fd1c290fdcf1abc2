package biz

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

// 降级发生的阶段。
const (
	StageRoute     = "route"
	StageTranslate = "translate"
	StageEmbed     = "embed"
	StageSearch    = "search"
	StageJudge     = "judge"
	StageGenerate  = "generate"
	StageBilling   = "billing"
	StageCache     = "cache"
)

// 失败类型。
const (
	KindUnavailable = "unavailable"
	KindTimeout     = "timeout"
	KindCanceled    = "canceled"
	KindMalformed   = "malformed"
	KindUpstream    = "upstream"
)

// errMalformed 标记上游返回了无法解析的内容。
var errMalformed = errors.New("malformed upstream output")

// Failure 描述一次被本地降级吸收的外部调用失败。
type Failure struct {
	Stage string
	Kind  string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// newFailure 根据错误链归类失败类型。
func newFailure(stage string, err error) *Failure {
	return &Failure{Stage: stage, Kind: classify(err), Err: err}
}

func classify(err error) string {
	switch {
	case errors.Is(err, llm.ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, errMalformed):
		return KindMalformed
	default:
		return KindUpstream
	}
}

// reportFailure 记录降级日志、指标与 span 错误。m 可以为 nil。
func reportFailure(ctx context.Context, m *metrics.RAGMetrics, f *Failure) {
	logger.Global().WithCtx(ctx).Warnw("外部调用失败，已降级",
		"stage", f.Stage,
		"kind", f.Kind,
		"error", f.Err.Error(),
	)
	tracing.RecordError(ctx, f)
	if m != nil {
		m.RecordFailure(f.Stage, f.Kind)
	}
}
