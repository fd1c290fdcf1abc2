package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable 表示所需能力未配置（例如缺少 API 密钥）。
var ErrUnavailable = errors.New("llm capability unavailable")

// Unavailable 是缺少凭据时注入的占位能力。
// 它同时实现 EmbeddingProvider 与 ChatProvider，所有调用都返回 ErrUnavailable，
// 调用方通过 IsUnavailable 判断并走降级路径。
type Unavailable struct {
	// Reason 说明不可用的原因，仅用于日志。
	Reason string
}

var _ Provider = (*Unavailable)(nil)

// NewUnavailable 创建不可用能力。
func NewUnavailable(reason string) *Unavailable {
	return &Unavailable{Reason: reason}
}

// Unavailable 标记该值为不可用能力。
func (u *Unavailable) Unavailable() bool { return true }

// Name 返回供应商名称。
func (u *Unavailable) Name() string { return "unavailable" }

func (u *Unavailable) err() error {
	if u.Reason == "" {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// Embed 始终返回 ErrUnavailable。
func (u *Unavailable) Embed(context.Context, []string) ([][]float32, error) {
	return nil, u.err()
}

// EmbedSingle 始终返回 ErrUnavailable。
func (u *Unavailable) EmbedSingle(context.Context, string) ([]float32, error) {
	return nil, u.err()
}

// Chat 始终返回 ErrUnavailable。
func (u *Unavailable) Chat(context.Context, []Message, ...CallOption) (*GenerateResponse, error) {
	return nil, u.err()
}

// StreamChat 始终返回 ErrUnavailable，不会调用 onToken。
func (u *Unavailable) StreamChat(context.Context, []Message, func(string) error, ...CallOption) (*GenerateResponse, error) {
	return nil, u.err()
}

// Generate 始终返回 ErrUnavailable。
func (u *Unavailable) Generate(context.Context, string, string, ...CallOption) (*GenerateResponse, error) {
	return nil, u.err()
}

// IsUnavailable 判断 v 是否为不可用能力（包括转发该标记的包装器）。
func IsUnavailable(v any) bool {
	u, ok := v.(interface{ Unavailable() bool })
	return ok && u.Unavailable()
}
