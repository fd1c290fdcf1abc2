package biz

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

// fakeChat 以函数字段模拟聊天模型，未设置的调用返回空响应。
type fakeChat struct {
	chat   func(ctx context.Context, msgs []llm.Message, o llm.CallOptions) (*llm.GenerateResponse, error)
	stream func(ctx context.Context, msgs []llm.Message, onToken func(string) error, o llm.CallOptions) (*llm.GenerateResponse, error)
	calls  atomic.Int32
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Chat(ctx context.Context, msgs []llm.Message, opts ...llm.CallOption) (*llm.GenerateResponse, error) {
	f.calls.Add(1)
	if f.chat == nil {
		return &llm.GenerateResponse{}, nil
	}
	return f.chat(ctx, msgs, llm.ApplyCallOptions(opts...))
}

func (f *fakeChat) StreamChat(ctx context.Context, msgs []llm.Message, onToken func(string) error, opts ...llm.CallOption) (*llm.GenerateResponse, error) {
	f.calls.Add(1)
	if f.stream == nil {
		return &llm.GenerateResponse{}, nil
	}
	return f.stream(ctx, msgs, onToken, llm.ApplyCallOptions(opts...))
}

func (f *fakeChat) Generate(ctx context.Context, prompt, system string, opts ...llm.CallOption) (*llm.GenerateResponse, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleSystem, Content: system}, {Role: llm.RoleUser, Content: prompt}}, opts...)
}

// reply 返回固定内容的 Chat 实现。
func reply(content string) func(context.Context, []llm.Message, llm.CallOptions) (*llm.GenerateResponse, error) {
	return func(context.Context, []llm.Message, llm.CallOptions) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Content: content}, nil
	}
}

// streamTokens 逐个发送 tokens 的 StreamChat 实现。
func streamTokens(tokens ...string) func(context.Context, []llm.Message, func(string) error, llm.CallOptions) (*llm.GenerateResponse, error) {
	return func(_ context.Context, _ []llm.Message, onToken func(string) error, _ llm.CallOptions) (*llm.GenerateResponse, error) {
		for _, tok := range tokens {
			if err := onToken(tok); err != nil {
				return nil, err
			}
		}
		return &llm.GenerateResponse{Content: strings.Join(tokens, "")}, nil
	}
}

// fakeEmbedder 按关键词生成三维向量：住房相关、备忘录相关、其他。
type fakeEmbedder struct {
	err   error
	fail  map[string]bool
	calls atomic.Int32
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.fail[text] {
		return nil, context.DeadlineExceeded
	}
	return keywordVector(text), nil
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "housing") || strings.Contains(lower, "إسكان"):
		return []float32{1, 0, 0}
	case strings.Contains(lower, "memo"):
		return []float32{0.9, 0.1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func insertChunks(t *testing.T, s store.VectorStore, chunks ...store.Chunk) {
	t.Helper()
	ptrs := make([]*store.Chunk, len(chunks))
	for i := range chunks {
		c := chunks[i]
		if c.ID == "" {
			c.ID = c.SourceURI + "-" + string(rune('a'+i))
		}
		if c.Vector == nil {
			c.Vector = keywordVector(c.Text)
		}
		ptrs[i] = &c
	}
	require.NoError(t, s.Insert(context.Background(), ptrs))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "rag.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func collect(ch <-chan Event) []Event {
	var evs []Event
	for ev := range ch {
		evs = append(evs, ev)
	}
	return evs
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func terminalCount(evs []Event) int {
	n := 0
	for _, ev := range evs {
		if ev.Terminal() {
			n++
		}
	}
	return n
}
