package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/pkg/llm"
	"github.com/kart-io/sentinel-rag/pkg/utils/httpclient"
)

var errTransient = &httpclient.StatusError{StatusCode: http.StatusBadGateway}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Second, HalfOpenMaxCalls: 1})
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	assert.Error(t, cb.Execute(func() error { return boom }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Error(t, cb.Execute(func() error { return boom }))
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitBreakerOpen)

	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Stats{Name: "test", State: "closed"}, cb.Stats())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("x") })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errors.New("x") })
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})
	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("eventual success", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("max attempts", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(2), func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 2, calls)
	})

	t.Run("non retryable", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(5), func() error {
			calls++
			return &httpclient.StatusError{StatusCode: http.StatusBadRequest}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := fastRetry(5)
		cfg.InitialDelay = time.Hour
		cancel()
		err := RetryWithBackoff(ctx, cfg, func() error { return errTransient })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&httpclient.StatusError{StatusCode: 503}, true},
		{&httpclient.StatusError{StatusCode: 429}, true},
		{&httpclient.StatusError{StatusCode: 401}, false},
		{fmt.Errorf("wrap: %w", llm.ErrUnavailable), false},
		{ErrCircuitBreakerOpen, false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableError(tt.err), "%v", tt.err)
	}
}

type flakyStream struct {
	name    string
	calls   int
	emitErr bool
}

func (f *flakyStream) Name() string { return f.name }
func (f *flakyStream) Chat(context.Context, []llm.Message, ...llm.CallOption) (*llm.GenerateResponse, error) {
	f.calls++
	return nil, errTransient
}
func (f *flakyStream) Generate(context.Context, string, string, ...llm.CallOption) (*llm.GenerateResponse, error) {
	f.calls++
	if f.calls < 2 {
		return nil, errTransient
	}
	return &llm.GenerateResponse{Content: "ok"}, nil
}
func (f *flakyStream) StreamChat(_ context.Context, _ []llm.Message, onToken func(string) error, _ ...llm.CallOption) (*llm.GenerateResponse, error) {
	f.calls++
	if f.emitErr {
		_ = onToken("partial")
	}
	return nil, errTransient
}

func TestResilientChatProvider(t *testing.T) {
	t.Run("generate retries", func(t *testing.T) {
		inner := &flakyStream{name: "f"}
		p := NewResilientChatProvider(inner, fastRetry(3), nil)
		resp, err := p.Generate(context.Background(), "q", "")
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, 2, inner.calls)
		assert.Equal(t, "f", p.Name())
	})

	t.Run("stream is not replayed after output", func(t *testing.T) {
		inner := &flakyStream{name: "f", emitErr: true}
		p := NewResilientChatProvider(inner, fastRetry(3), nil)
		_, err := p.StreamChat(context.Background(), nil, func(string) error { return nil })
		assert.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("stream retried before output", func(t *testing.T) {
		inner := &flakyStream{name: "f"}
		p := NewResilientChatProvider(inner, fastRetry(3), nil)
		_, err := p.StreamChat(context.Background(), nil, func(string) error { return nil })
		assert.Error(t, err)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("forwards unavailable", func(t *testing.T) {
		assert.True(t, llm.IsUnavailable(NewResilientChatProvider(llm.NewUnavailable(""), nil, nil)))
		assert.True(t, llm.IsUnavailable(NewResilientEmbeddingProvider(llm.NewUnavailable(""), nil, nil)))
	})
}
