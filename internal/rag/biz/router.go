package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

const tracerName = "sentinel-rag/biz"

// DefaultDomainTerms 命中任一词即直接判定需要检索。
var DefaultDomainTerms = []string{
	"vision 2030", "law", "regulation", "decree", "article", "pillar",
	"ministry", "housing", "investment", "licens", "policy",
	"رؤية", "نظام", "قانون", "لائحة", "مادة", "وزارة", "إسكان",
}

const routerPrompt = `You are a query router for a knowledge base of official documents.
REPLY 'YES' only if the question is about laws, Vision 2030 statistics, business regulations, or specific document content.
REPLY 'NO' if it is general conversation, greetings, coding, or general knowledge.
Reply ONLY with 'YES' or 'NO'.`

const translatePrompt = `Translate this %s query to strictly %s for a search engine. Output ONLY the translation.
Query: %s`

// RouterConfig 路由器配置。
type RouterConfig struct {
	// Timeout 分类与翻译调用的超时时间。
	Timeout time.Duration
	// DomainTerms 启发式领域词表，为空时使用 DefaultDomainTerms。
	DomainTerms []string
}

// Router 判断查询是否需要检索，并生成双语查询变体。
type Router struct {
	classifier llm.ChatProvider
	config     RouterConfig
	metrics    *metrics.RAGMetrics
}

// NewRouter 创建路由器。classifier 可以是 llm.Unavailable，此时总是判定需要检索且不翻译。
func NewRouter(classifier llm.ChatProvider, config RouterConfig, m *metrics.RAGMetrics) *Router {
	if len(config.DomainTerms) == 0 {
		config.DomainTerms = DefaultDomainTerms
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Router{classifier: classifier, config: config, metrics: m}
}

// NeedsRetrieval 判断查询是否需要检索知识库。
// 关键词命中立即返回 true；否则调用低延迟分类模型，任何失败都返回 true。
func (r *Router) NeedsRetrieval(ctx context.Context, query string) bool {
	ctx, span := tracing.StartSpan(ctx, tracerName, "router.needs_retrieval")
	defer span.End()

	decision := r.needsRetrieval(ctx, query)
	span.SetAttributes(attribute.Bool("rag.retrieve", decision))
	if r.metrics != nil {
		r.metrics.RecordRouting(decision)
	}
	return decision
}

func (r *Router) needsRetrieval(ctx context.Context, query string) bool {
	if textutil.ContainsAnyFold(query, r.config.DomainTerms) {
		return true
	}
	if llm.IsUnavailable(r.classifier) {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	resp, err := r.classifier.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: routerPrompt},
		{Role: llm.RoleUser, Content: query},
	}, llm.WithMaxTokens(2), llm.WithTemperature(0))
	if err != nil {
		reportFailure(ctx, r.metrics, newFailure(StageRoute, err))
		return true
	}
	return strings.Contains(strings.ToUpper(resp.Content), "YES")
}

// ExpandQuery 检测查询语言并翻译为另一种语言，返回去重后的变体列表。
// 翻译失败或结果为空时只返回原始查询。
func (r *Router) ExpandQuery(ctx context.Context, query string) Expansion {
	lang := textutil.DetectLanguage(query)
	exp := Expansion{DetectedLanguage: lang, Variants: []string{query}}

	if llm.IsUnavailable(r.classifier) {
		return exp
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "router.expand_query",
		attribute.String("rag.language", string(lang)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	from, to := "English", "Arabic"
	if lang == textutil.LanguageArabic {
		from, to = "Arabic", "English"
	}
	prompt := fmt.Sprintf(translatePrompt, from, to, query)

	resp, err := r.classifier.Chat(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.WithTemperature(0))
	if err != nil {
		reportFailure(ctx, r.metrics, newFailure(StageTranslate, err))
		return exp
	}

	translated := strings.TrimSpace(resp.Content)
	if translated == "" {
		reportFailure(ctx, r.metrics, newFailure(StageTranslate, errMalformed))
		return exp
	}
	exp.Variants = dedupeVariants(append(exp.Variants, translated))
	return exp
}

// dedupeVariants 按去除首尾空白后的文本去重，保留首次出现顺序。
func dedupeVariants(variants []string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		key := strings.TrimSpace(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
