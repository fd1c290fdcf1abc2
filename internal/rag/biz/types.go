package biz

import (
	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
)

// Candidate 一次检索中融合后的候选块，仅在单次检索内有效。
type Candidate struct {
	// Chunk 候选文档块。
	Chunk store.Chunk
	// Distance 所有命中变体中的最小距离。
	Distance float64
	// MatchCount 召回该块的不同查询变体数。
	MatchCount int
	// Score 启发式得分，越大越相关。
	Score float64
}

// ScoredResult 对外可见的检索结果。
type ScoredResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Expansion 查询扩展结果。
type Expansion struct {
	// DetectedLanguage 原始查询的语言。
	DetectedLanguage textutil.Language
	// Variants 去重后的查询变体，第一个始终是原始查询。
	Variants []string
}

// Turn 一轮对话。
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UsageRecord 一次生成的用量。
type UsageRecord struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostCredits  float64 `json:"cost"`
}

// Billing billing 事件负载。
type Billing struct {
	Cost      float64 `json:"cost"`
	Remaining float64 `json:"remaining"`
}

// EventKind 生成事件类型。
type EventKind string

const (
	EventStatus  EventKind = "status"
	EventSources EventKind = "sources"
	EventToken   EventKind = "token"
	EventBilling EventKind = "billing"
	EventError   EventKind = "error"
	EventDone    EventKind = "done"
)

// Event 生成事件。Data 的具体类型由 Kind 决定：
// status/token/error 为 string，sources 为 []string，billing 为 Billing，done 为 nil。
type Event struct {
	Kind EventKind `json:"event"`
	Data any       `json:"data"`
}

// Terminal 判断事件是否为终止事件。
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

func statusEvent(text string) Event { return Event{Kind: EventStatus, Data: text} }
func sourcesEvent(srcs []string) Event { return Event{Kind: EventSources, Data: srcs} }
func tokenEvent(text string) Event { return Event{Kind: EventToken, Data: text} }
func billingEvent(b Billing) Event { return Event{Kind: EventBilling, Data: b} }
func errorEvent(text string) Event { return Event{Kind: EventError, Data: text} }
func doneEvent() Event { return Event{Kind: EventDone} }
