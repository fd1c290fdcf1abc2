package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

func TestNeedsRetrievalKeywordShortCircuit(t *testing.T) {
	chat := &fakeChat{chat: reply("NO")}
	r := NewRouter(chat, RouterConfig{}, nil)

	assert.True(t, r.NeedsRetrieval(context.Background(), "What does the Housing program target?"))
	assert.True(t, r.NeedsRetrieval(context.Background(), "ما هي أهداف رؤية المملكة"))
	assert.Zero(t, chat.calls.Load(), "domain terms never reach the classifier")
}

func TestNeedsRetrievalClassifier(t *testing.T) {
	tests := []struct {
		name   string
		chat   *fakeChat
		expect bool
	}{
		{"yes", &fakeChat{chat: reply("YES")}, true},
		{"lowercase yes", &fakeChat{chat: reply(" yes.")}, true},
		{"no", &fakeChat{chat: reply("NO")}, false},
		{"garbage", &fakeChat{chat: reply("maybe")}, false},
		{"error fails open", &fakeChat{chat: func(context.Context, []llm.Message, llm.CallOptions) (*llm.GenerateResponse, error) {
			return nil, errors.New("boom")
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.chat, RouterConfig{}, nil)
			assert.Equal(t, tt.expect, r.NeedsRetrieval(context.Background(), "hello there"))
			assert.EqualValues(t, 1, tt.chat.calls.Load())
		})
	}
}

func TestNeedsRetrievalClassifierOptions(t *testing.T) {
	var got llm.CallOptions
	chat := &fakeChat{chat: func(_ context.Context, msgs []llm.Message, o llm.CallOptions) (*llm.GenerateResponse, error) {
		got = o
		assert.Equal(t, llm.RoleSystem, msgs[0].Role)
		assert.Equal(t, "tell me a joke", msgs[1].Content)
		return &llm.GenerateResponse{Content: "NO"}, nil
	}}
	NewRouter(chat, RouterConfig{}, nil).NeedsRetrieval(context.Background(), "tell me a joke")

	assert.Equal(t, 2, got.MaxTokens)
	if assert.NotNil(t, got.Temperature) {
		assert.Zero(t, *got.Temperature)
	}
}

func TestNeedsRetrievalTimeoutFailsOpen(t *testing.T) {
	m := metrics.New()
	chat := &fakeChat{chat: func(ctx context.Context, _ []llm.Message, _ llm.CallOptions) (*llm.GenerateResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := NewRouter(chat, RouterConfig{Timeout: 20 * time.Millisecond}, m)

	assert.True(t, r.NeedsRetrieval(context.Background(), "hello"))
	assert.EqualValues(t, 1, m.Failures()[StageRoute+"/"+KindTimeout])
}

func TestNeedsRetrievalUnavailable(t *testing.T) {
	r := NewRouter(llm.NewUnavailable("no key"), RouterConfig{}, nil)
	assert.True(t, r.NeedsRetrieval(context.Background(), "hello"))
}

func TestExpandQuery(t *testing.T) {
	t.Run("arabic to english", func(t *testing.T) {
		chat := &fakeChat{chat: func(_ context.Context, msgs []llm.Message, _ llm.CallOptions) (*llm.GenerateResponse, error) {
			assert.Contains(t, msgs[0].Content, "Translate this Arabic query to strictly English")
			return &llm.GenerateResponse{Content: "  housing targets \n"}, nil
		}}
		exp := NewRouter(chat, RouterConfig{}, nil).ExpandQuery(context.Background(), "أهداف الإسكان")
		assert.Equal(t, textutil.LanguageArabic, exp.DetectedLanguage)
		assert.Equal(t, []string{"أهداف الإسكان", "housing targets"}, exp.Variants)
	})

	t.Run("english to arabic", func(t *testing.T) {
		chat := &fakeChat{chat: func(_ context.Context, msgs []llm.Message, _ llm.CallOptions) (*llm.GenerateResponse, error) {
			assert.Contains(t, msgs[0].Content, "Translate this English query to strictly Arabic")
			return &llm.GenerateResponse{Content: "أهداف الإسكان"}, nil
		}}
		exp := NewRouter(chat, RouterConfig{}, nil).ExpandQuery(context.Background(), "housing targets")
		assert.Equal(t, textutil.LanguageEnglish, exp.DetectedLanguage)
		assert.Equal(t, []string{"housing targets", "أهداف الإسكان"}, exp.Variants)
	})

	t.Run("identical translation is deduplicated", func(t *testing.T) {
		exp := NewRouter(&fakeChat{chat: reply("NEOM")}, RouterConfig{}, nil).ExpandQuery(context.Background(), "NEOM")
		assert.Equal(t, []string{"NEOM"}, exp.Variants)
	})

	t.Run("empty translation", func(t *testing.T) {
		exp := NewRouter(&fakeChat{chat: reply("   ")}, RouterConfig{}, nil).ExpandQuery(context.Background(), "housing")
		assert.Equal(t, []string{"housing"}, exp.Variants)
	})

	t.Run("translation failure", func(t *testing.T) {
		chat := &fakeChat{chat: func(context.Context, []llm.Message, llm.CallOptions) (*llm.GenerateResponse, error) {
			return nil, errors.New("503")
		}}
		exp := NewRouter(chat, RouterConfig{}, nil).ExpandQuery(context.Background(), "housing")
		assert.Equal(t, []string{"housing"}, exp.Variants)
	})

	t.Run("unavailable", func(t *testing.T) {
		exp := NewRouter(llm.NewUnavailable(""), RouterConfig{}, nil).ExpandQuery(context.Background(), "housing")
		assert.Equal(t, []string{"housing"}, exp.Variants)
	})
}
