// Package metrics 提供 RAG 服务的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RAGMetrics RAG 服务业务指标。所有方法并发安全。
type RAGMetrics struct {
	// 查询指标
	queriesTotal  atomic.Uint64 // 总对话请求数
	queriesErrors atomic.Uint64 // 以 error 事件结束的请求数

	// 路由指标
	routedRetrieval atomic.Uint64 // 判定需要检索
	routedDirect    atomic.Uint64 // 判定直接回答

	// 检索指标
	retrievalTotal  atomic.Uint64 // 总检索次数
	retrievalEmpty  atomic.Uint64 // 无结果的检索次数
	cacheHits       atomic.Uint64 // 检索缓存命中
	cacheMisses     atomic.Uint64 // 检索缓存未命中
	judgeCalls      atomic.Uint64 // 相关性评审调用次数
	judgeFallbacks  atomic.Uint64 // 相关性评审降级次数
	retrievalNanos  atomic.Int64  // 检索总耗时

	// 计费指标
	tokensInput    atomic.Uint64 // 输入 token 总数
	tokensOutput   atomic.Uint64 // 输出 token 总数
	billingFailure atomic.Uint64 // 计费持久化失败次数

	// 索引指标
	documentsIndexed atomic.Uint64 // 已索引文档数
	chunksIndexed    atomic.Uint64 // 已索引分块数
	indexErrors      atomic.Uint64 // 索引错误次数

	mu         sync.Mutex
	credits    float64           // 已扣除积分总数
	rejections map[string]uint64 // 准入拒绝，按原因
	failures   map[string]uint64 // 降级/失败，按 stage/kind
	startTime  time.Time
}

// New 创建指标收集器。
func New() *RAGMetrics {
	return &RAGMetrics{
		rejections: make(map[string]uint64),
		failures:   make(map[string]uint64),
		startTime:  time.Now(),
	}
}

// RecordQuery 记录一次对话请求的结束。
func (m *RAGMetrics) RecordQuery(err error) {
	m.queriesTotal.Add(1)
	if err != nil {
		m.queriesErrors.Add(1)
	}
}

// RecordRouting 记录路由判定。
func (m *RAGMetrics) RecordRouting(retrieve bool) {
	if retrieve {
		m.routedRetrieval.Add(1)
	} else {
		m.routedDirect.Add(1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, results int) {
	m.retrievalTotal.Add(1)
	m.retrievalNanos.Add(int64(duration))
	if results == 0 {
		m.retrievalEmpty.Add(1)
	}
}

// RecordCache 记录检索缓存命中情况。
func (m *RAGMetrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

// RecordJudge 记录相关性评审；fallback 表示返回了未重排的输入。
func (m *RAGMetrics) RecordJudge(fallback bool) {
	m.judgeCalls.Add(1)
	if fallback {
		m.judgeFallbacks.Add(1)
	}
}

// RecordUsage 记录一次成功计费。
func (m *RAGMetrics) RecordUsage(inputTokens, outputTokens int, cost float64) {
	m.tokensInput.Add(uint64(inputTokens))
	m.tokensOutput.Add(uint64(outputTokens))
	m.mu.Lock()
	m.credits += cost
	m.mu.Unlock()
}

// RecordBillingFailure 记录计费持久化失败。
func (m *RAGMetrics) RecordBillingFailure() {
	m.billingFailure.Add(1)
}

// RecordRejection 记录准入拒绝。
func (m *RAGMetrics) RecordRejection(reason string) {
	m.mu.Lock()
	m.rejections[reason]++
	m.mu.Unlock()
}

// RecordFailure 记录某阶段的降级或失败。
func (m *RAGMetrics) RecordFailure(stage, kind string) {
	m.mu.Lock()
	m.failures[stage+"/"+kind]++
	m.mu.Unlock()
}

// RecordIndexing 记录索引操作。
func (m *RAGMetrics) RecordIndexing(documents, chunks int, err error) {
	if err != nil {
		m.indexErrors.Add(1)
		return
	}
	m.documentsIndexed.Add(uint64(documents))
	m.chunksIndexed.Add(uint64(chunks))
}

// Failures 返回按 stage/kind 聚合的失败计数快照。
func (m *RAGMetrics) Failures() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.failures))
	for k, v := range m.failures {
		out[k] = v
	}
	return out
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	var sb strings.Builder
	counter := func(name, help string, v interface{}) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n# TYPE %s_%s counter\n", prefix, name, help, prefix, name)
		switch x := v.(type) {
		case float64:
			fmt.Fprintf(&sb, "%s_%s %.6f\n\n", prefix, name, x)
		default:
			fmt.Fprintf(&sb, "%s_%s %d\n\n", prefix, name, x)
		}
	}

	counter("queries_total", "Total number of chat requests.", m.queriesTotal.Load())
	counter("queries_errors_total", "Chat requests that ended with an error event.", m.queriesErrors.Load())
	counter("routing_retrieval_total", "Queries routed to retrieval.", m.routedRetrieval.Load())
	counter("routing_direct_total", "Queries answered without retrieval.", m.routedDirect.Load())
	counter("retrieval_total", "Total number of retrievals.", m.retrievalTotal.Load())
	counter("retrieval_empty_total", "Retrievals that returned no results.", m.retrievalEmpty.Load())
	counter("retrieval_duration_seconds_total", "Total retrieval duration.", time.Duration(m.retrievalNanos.Load()).Seconds())
	counter("retrieval_cache_hits_total", "Retrieval cache hits.", m.cacheHits.Load())
	counter("retrieval_cache_misses_total", "Retrieval cache misses.", m.cacheMisses.Load())
	counter("judge_calls_total", "Relevance judge invocations.", m.judgeCalls.Load())
	counter("judge_fallbacks_total", "Relevance judge calls that fell back to heuristic order.", m.judgeFallbacks.Load())
	counter("tokens_input_total", "Billed input tokens.", m.tokensInput.Load())
	counter("tokens_output_total", "Billed output tokens.", m.tokensOutput.Load())
	counter("billing_failures_total", "Usage records that could not be persisted.", m.billingFailure.Load())
	counter("documents_indexed_total", "Documents indexed.", m.documentsIndexed.Load())
	counter("chunks_indexed_total", "Chunks indexed.", m.chunksIndexed.Load())
	counter("index_errors_total", "Indexing errors.", m.indexErrors.Load())

	m.mu.Lock()
	counter("credits_charged_total", "Credits charged.", m.credits)
	labeled(&sb, prefix+"_admission_rejections_total", "Chat requests rejected before generation.", "reason", m.rejections)
	labeled(&sb, prefix+"_failures_total", "Degraded or failed pipeline stages.", "stage_kind", m.failures)
	m.mu.Unlock()

	fmt.Fprintf(&sb, "# HELP %s_uptime_seconds Service uptime.\n# TYPE %s_uptime_seconds gauge\n%s_uptime_seconds %.0f\n",
		prefix, prefix, prefix, time.Since(m.startTime).Seconds())
	return sb.String()
}

func labeled(sb *strings.Builder, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
	sb.WriteString("\n")
}
