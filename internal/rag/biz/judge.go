package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

const (
	judgeSystemPrompt = "You are a precise relevance filter."
	judgeSnippetRunes = 300
	judgeBoost        = 1.0
	judgePenalty      = 0.5
)

// Judge 基于 LLM 的相关性重排器。
type Judge struct {
	chat    llm.ChatProvider
	timeout time.Duration
	metrics *metrics.RAGMetrics
}

// NewJudge 创建相关性评审器。timeout 为零时使用 8 秒。
func NewJudge(chat llm.ChatProvider, timeout time.Duration, m *metrics.RAGMetrics) *Judge {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Judge{chat: chat, timeout: timeout, metrics: m}
}

// Rerank 让模型挑选高度相关的候选，被选中的得分加 1.0，其余减半，然后稳定降序排序。
// 返回的集合与输入相同；任何失败（超时、调用错误、输出无法解析）都原样返回输入。
func (j *Judge) Rerank(ctx context.Context, query string, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	if llm.IsUnavailable(j.chat) {
		j.fallback(ctx, llm.ErrUnavailable)
		return candidates
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "judge.rerank",
		attribute.Int("rag.candidates", len(candidates)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: judgeSystemPrompt},
		{Role: llm.RoleUser, Content: buildJudgePrompt(query, candidates)},
	}, llm.WithTemperature(0), llm.WithJSONMode())
	if err != nil {
		j.fallback(ctx, err)
		return candidates
	}

	indices, err := textutil.ParseIndexList(resp.Content)
	if err != nil {
		j.fallback(ctx, fmt.Errorf("%w: %v", errMalformed, err))
		return candidates
	}

	selected := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(candidates) {
			selected[i] = struct{}{}
		}
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if _, ok := selected[i]; ok {
			out[i].Score += judgeBoost
		} else {
			out[i].Score *= judgePenalty
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })

	if j.metrics != nil {
		j.metrics.RecordJudge(false)
	}
	span.SetAttributes(attribute.Int("rag.selected", len(selected)))
	return out
}

func (j *Judge) fallback(ctx context.Context, err error) {
	if j.metrics != nil {
		j.metrics.RecordJudge(true)
	}
	reportFailure(ctx, j.metrics, newFailure(StageJudge, err))
}

func buildJudgePrompt(query string, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance judge. Pick the documents that directly help answer the user query.\n\n")
	fmt.Fprintf(&sb, "User Query: %s\n\nDocuments:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s...\n", i, textutil.TruncateString(c.Chunk.Text, judgeSnippetRunes))
	}
	fmt.Fprintf(&sb, "\nReturn a JSON output of the indices (0-%d) that are HIGHLY RELEVANT to the query.\n", len(candidates)-1)
	sb.WriteString("Example: {\"indices\": [0, 2]}\nIf none are relevant, return {\"indices\": []}.\nReturn ONLY valid JSON.")
	return sb.String()
}
