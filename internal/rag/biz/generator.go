package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
)

// 状态事件文本。
const (
	StatusAnalyzing   = "Analyzing Language & Intent..."
	StatusTranslating = "Translating Query..."
	StatusSearching   = "Searching Knowledge Base..."
	StatusReading     = "Reading %d Official Documents..."
	StatusDrafting    = "Drafting Response..."
)

// QueryRouter 路由与查询扩展。
type QueryRouter interface {
	NeedsRetrieval(ctx context.Context, query string) bool
	ExpandQuery(ctx context.Context, query string) Expansion
}

// Searcher 检索对调用方可见的结果。
type Searcher interface {
	Search(ctx context.Context, variants []string, topK int, caller string) []ScoredResult
}

// Biller 计费。
type Biller interface {
	Charge(ctx context.Context, caller, modelName string, inputTokens, outputTokens int) (UsageRecord, float64, error)
}

// OrchestratorConfig 生成编排配置。
type OrchestratorConfig struct {
	// SystemPrompt 系统提示词，检索到的段落追加在其后。
	SystemPrompt string
	// HistoryTurns 发送给模型的历史轮数。
	HistoryTurns int
	// TopK 默认的检索结果数。
	TopK int
	// RedactPII 路由与检索前遮蔽个人信息。
	RedactPII bool
}

// StreamRequest 一次生成请求。
type StreamRequest struct {
	// Query 当前问题。
	Query string
	// History 历史对话，按时间正序。
	History []Turn
	// Caller 调用方身份，用于访问控制与计费。
	Caller string
	// Model 准入阶段选定的模型，空值表示供应商默认模型。
	Model string
	// TopK 覆盖默认检索数，零值使用配置。
	TopK int
	// OnAnswer 在产生输出后调用，用于保存助手回复。
	OnAnswer func(ctx context.Context, answer string)
}

// Orchestrator 驱动一次完整的检索增强生成，并以事件流输出。
type Orchestrator struct {
	router    QueryRouter
	retriever Searcher
	chat      llm.ChatProvider
	ledger    Biller
	config    OrchestratorConfig
	metrics   *metrics.RAGMetrics
}

// NewOrchestrator 创建生成编排器。
func NewOrchestrator(
	router QueryRouter,
	retriever Searcher,
	chat llm.ChatProvider,
	ledger Biller,
	config OrchestratorConfig,
	m *metrics.RAGMetrics,
) *Orchestrator {
	if config.HistoryTurns < 0 {
		config.HistoryTurns = 0
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	return &Orchestrator{
		router:    router,
		retriever: retriever,
		chat:      chat,
		ledger:    ledger,
		config:    config,
		metrics:   m,
	}
}

// Stream 启动生成并返回事件通道。
// 事件顺序为 status*、sources?、token*、billing?，最后恰好一个 done 或 error，随后通道关闭。
// ctx 取消后停止发送事件，通道直接关闭；已产生的输出仍然计费。
func (o *Orchestrator) Stream(ctx context.Context, req StreamRequest) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		ctx, span := tracing.StartSpan(ctx, tracerName, "orchestrator.stream",
			attribute.String("rag.model", req.Model))
		defer span.End()

		emit := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := o.safeRun(ctx, req, emit)
		if o.metrics != nil {
			o.metrics.RecordQuery(err)
		}
		if err != nil {
			tracing.RecordError(ctx, err)
			logger.Global().WithCtx(ctx).Errorw("生成失败", "user_id", req.Caller, "error", err.Error())
			if ctx.Err() == nil {
				emit(errorEvent(userMessage(err)))
			}
			return
		}
		emit(doneEvent())
	}()

	return out
}

// safeRun 将 panic 转换为错误，保证只产生一个终止事件。
func (o *Orchestrator) safeRun(ctx context.Context, req StreamRequest, emit func(Event) bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Global().WithCtx(ctx).Errorw("生成过程发生 panic",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = errors.ErrPanic.WithCause(fmt.Errorf("%v", r))
		}
	}()
	return o.run(ctx, req, emit)
}

func (o *Orchestrator) run(ctx context.Context, req StreamRequest, emit func(Event) bool) error {
	query := req.Query
	searchQuery := query
	if o.config.RedactPII {
		searchQuery = RedactPII(query)
	}

	if !emit(statusEvent(StatusAnalyzing)) {
		return ctx.Err()
	}

	var results []ScoredResult
	lang := textutil.DetectLanguage(query)
	if o.router.NeedsRetrieval(ctx, searchQuery) {
		emit(statusEvent(StatusTranslating))
		exp := o.router.ExpandQuery(ctx, searchQuery)
		if exp.DetectedLanguage != "" {
			lang = exp.DetectedLanguage
		}

		emit(statusEvent(StatusSearching))
		topK := req.TopK
		if topK <= 0 {
			topK = o.config.TopK
		}
		results = o.retriever.Search(ctx, exp.Variants, topK, req.Caller)
		if len(results) > 0 {
			emit(statusEvent(fmt.Sprintf(StatusReading, len(results))))
		}
	}
	emit(statusEvent(StatusDrafting))

	if sources := uniqueSources(results); len(sources) > 0 {
		emit(sourcesEvent(sources))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	messages := o.buildMessages(results, req.History, query, lang)

	var answer strings.Builder
	resp, streamErr := o.chat.StreamChat(ctx, messages, func(token string) error {
		answer.WriteString(token)
		if !emit(tokenEvent(token)) {
			return ctx.Err()
		}
		return nil
	}, llm.WithModel(req.Model))

	output := answer.String()
	if output != "" {
		o.settle(ctx, req, resp, output, emit)
	}

	if streamErr != nil {
		f := newFailure(StageGenerate, streamErr)
		if o.metrics != nil {
			o.metrics.RecordFailure(f.Stage, f.Kind)
		}
		return f
	}
	return ctx.Err()
}

// settle 计费并保存回复。计费失败只记录日志，回答仍然正常结束。
// 使用脱离取消的 context，消费者断开后已产生的输出仍然计费。
func (o *Orchestrator) settle(ctx context.Context, req StreamRequest, resp *llm.GenerateResponse, output string, emit func(Event) bool) {
	bg := context.WithoutCancel(ctx)

	if req.OnAnswer != nil {
		req.OnAnswer(bg, output)
	}

	var usage *llm.TokenUsage
	if resp != nil {
		usage = resp.TokenUsage
	}
	in, outTokens := countTokens(usage, req.Query, output)

	rec, remaining, err := o.ledger.Charge(bg, req.Caller, req.Model, in, outTokens)
	if err != nil {
		reportFailure(ctx, o.metrics, newFailure(StageBilling, err))
		return
	}
	emit(billingEvent(Billing{Cost: rec.CostCredits, Remaining: remaining}))
}

// buildMessages 组装 [系统提示 + 目标语言 + 参考段落] + 最近历史 + 当前问题。
func (o *Orchestrator) buildMessages(results []ScoredResult, history []Turn, query string, lang textutil.Language) []llm.Message {
	system := o.config.SystemPrompt + "\n\nTarget language: " + lang.Name() + "."
	if grounding := buildGrounding(results); grounding != "" {
		system += "\n\nReference passages:\n\n" + grounding
	}

	if n := o.config.HistoryTurns; len(history) > n {
		history = history[len(history)-n:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == string(llm.RoleAssistant) {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: query})
}

func buildGrounding(results []ScoredResult) string {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "Source: %s\nContent: %s\n\n", r.Source, r.Text)
	}
	return sb.String()
}

// uniqueSources 按首次出现顺序去重来源。
func uniqueSources(results []ScoredResult) []string {
	seen := make(map[string]struct{}, len(results))
	var sources []string
	for _, r := range results {
		if r.Source == "" {
			continue
		}
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		sources = append(sources, r.Source)
	}
	return sources
}

// userMessage 返回可展示给用户的错误描述，不暴露内部细节。
func userMessage(err error) string {
	if stderrors.Is(err, llm.ErrUnavailable) {
		return errors.ErrRAGServiceUnavailable.MessageEN
	}
	if e := errors.FromError(err); e != nil && errors.IsClientError(e.Code) {
		return e.MessageEN
	}
	return errors.ErrRAGQueryFailed.MessageEN
}
