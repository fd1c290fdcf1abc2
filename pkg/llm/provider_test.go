package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name       string
	embedCalls int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.embedCalls++
	result := make([][]float32, len(texts))
	for i, t := range texts {
		result[i] = []float32{float32(len(t)), 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *mockProvider) Chat(context.Context, []Message, ...CallOption) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock response"}, nil
}

func (m *mockProvider) StreamChat(_ context.Context, _ []Message, onToken func(string) error, _ ...CallOption) (*GenerateResponse, error) {
	if err := onToken("mock"); err != nil {
		return nil, err
	}
	return &GenerateResponse{Content: "mock"}, nil
}

func (m *mockProvider) Generate(context.Context, string, string, ...CallOption) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock generated text"}, nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	p, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", p.Name())

	chat, err := NewChatProvider("test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-provider", chat.Name())

	assert.Contains(t, ListProviders(), "test-provider")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	assert.Error(t, err)

	_, err = NewEmbeddingProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	u := NewUnavailable("api_key not configured")

	assert.True(t, IsUnavailable(u))
	assert.False(t, IsUnavailable(&mockProvider{}))

	_, err := u.EmbedSingle(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrUnavailable))

	called := false
	_, err = u.StreamChat(context.Background(), nil, func(string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
}

func TestApplyCallOptions(t *testing.T) {
	o := ApplyCallOptions(WithModel("gpt-4o"), WithMaxTokens(2), WithTemperature(0), WithJSONMode(), nil)
	assert.Equal(t, "gpt-4o", o.Model)
	assert.Equal(t, 2, o.MaxTokens)
	require.NotNil(t, o.Temperature)
	assert.Equal(t, 0.0, *o.Temperature)
	assert.True(t, o.JSONMode)
}

func TestCachedEmbeddingProviderWithoutRedis(t *testing.T) {
	inner := &mockProvider{name: "m"}
	c := NewCachedEmbeddingProvider(inner, nil, nil)

	v, err := c.EmbedSingle(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, float32(3), v[0])
	assert.Equal(t, "m-cached", c.Name())
	assert.False(t, IsUnavailable(c))

	assert.True(t, IsUnavailable(NewCachedEmbeddingProvider(NewUnavailable(""), nil, nil)))
}

func TestCachedEmbeddingProviderRedisDown(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	inner := &mockProvider{name: "m"}
	c := NewCachedEmbeddingProvider(inner, rdb, nil)

	out, err := c.Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, float32(2), out[1][0])
	assert.Equal(t, 1, inner.embedCalls)
}
