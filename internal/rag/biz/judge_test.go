package biz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

func judgeInput() []Candidate {
	return []Candidate{
		{Chunk: store.Chunk{Text: "alpha", SourceURI: "a"}, Score: 0.9},
		{Chunk: store.Chunk{Text: "beta", SourceURI: "b"}, Score: 0.8},
		{Chunk: store.Chunk{Text: "gamma", SourceURI: "c"}, Score: 0.7},
	}
}

func sourcesOf(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Chunk.SourceURI
	}
	return out
}

func TestJudgeRerank(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		order   []string
		topWant float64
	}{
		{"object", `{"indices": [2]}`, []string{"c", "a", "b"}, 1.7},
		{"bare list", `[1, 2]`, []string{"b", "c", "a"}, 1.8},
		{"fenced", "```json\n[1]\n```", []string{"b", "a", "c"}, 1.8},
		{"none relevant", `{"indices": []}`, []string{"a", "b", "c"}, 0.45},
		{"out of range ignored", `[7, -1, 0]`, []string{"a", "b", "c"}, 1.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJudge(&fakeChat{chat: reply(tt.output)}, time.Second, nil)
			in := judgeInput()
			out := j.Rerank(context.Background(), "q", in)

			require.Len(t, out, len(in))
			assert.Equal(t, tt.order, sourcesOf(out))
			assert.InDelta(t, tt.topWant, out[0].Score, 1e-9)
			assert.Equal(t, []string{"a", "b", "c"}, sourcesOf(in), "input is not mutated")
		})
	}
}

func TestJudgePrompt(t *testing.T) {
	long := strings.Repeat("ب", 400)
	var got []llm.Message
	var opts llm.CallOptions
	chat := &fakeChat{chat: func(_ context.Context, msgs []llm.Message, o llm.CallOptions) (*llm.GenerateResponse, error) {
		got, opts = msgs, o
		return &llm.GenerateResponse{Content: "[]"}, nil
	}}
	in := []Candidate{{Chunk: store.Chunk{Text: long}}, {Chunk: store.Chunk{Text: "short"}}}
	NewJudge(chat, time.Second, nil).Rerank(context.Background(), "housing target", in)

	require.Len(t, got, 2)
	assert.Equal(t, judgeSystemPrompt, got[0].Content)
	assert.Contains(t, got[1].Content, "User Query: housing target")
	assert.Contains(t, got[1].Content, "[0] "+strings.Repeat("ب", 300)+"...")
	assert.NotContains(t, got[1].Content, strings.Repeat("ب", 301))
	assert.Contains(t, got[1].Content, "(0-1)")
	assert.True(t, opts.JSONMode)
}

func TestJudgeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		chat llm.ChatProvider
		kind string
	}{
		{"call error", &fakeChat{chat: func(context.Context, []llm.Message, llm.CallOptions) (*llm.GenerateResponse, error) {
			return nil, errors.New("429")
		}}, KindUpstream},
		{"malformed", &fakeChat{chat: reply("the first one")}, KindMalformed},
		{"timeout", &fakeChat{chat: func(ctx context.Context, _ []llm.Message, _ llm.CallOptions) (*llm.GenerateResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}, KindTimeout},
		{"unavailable", llm.NewUnavailable("no key"), KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			in := judgeInput()
			start := time.Now()
			out := NewJudge(tt.chat, 30*time.Millisecond, m).Rerank(context.Background(), "q", in)

			assert.Equal(t, in, out)
			assert.Less(t, time.Since(start), 2*time.Second)
			assert.EqualValues(t, 1, m.Failures()[StageJudge+"/"+tt.kind])
		})
	}
}
