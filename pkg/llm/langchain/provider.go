// Package langchain 通过 langchaingo 接入任意 OpenAI 兼容服务（vLLM、LocalAI、Ollama /v1 等）。
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/kart-io/sentinel-rag/pkg/llm"
)

// ProviderName 供应商名称。
const ProviderName = "langchain"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config langchaingo 供应商配置。
type Config struct {
	BaseURL    string `json:"base_url" mapstructure:"base_url"`
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	ChatModel  string `json:"chat_model" mapstructure:"chat_model"`
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`
}

// Provider 基于 langchaingo 的供应商实现。
type Provider struct {
	model    llms.Model
	embedder embeddings.Embedder
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建供应商。本地服务无需密钥时 api_key 可为空。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := &Config{}
	if v, ok := configMap["base_url"].(string); ok {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := configMap["chat_model"].(string); ok {
		cfg.ChatModel = v
	}
	if v, ok := configMap["embed_model"].(string); ok {
		cfg.EmbedModel = v
	}
	return NewProviderWithConfig(cfg)
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("langchain: base_url 是必需的")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	opts := []lcopenai.Option{
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithToken(token),
	}
	if cfg.ChatModel != "" {
		opts = append(opts, lcopenai.WithModel(cfg.ChatModel))
	}
	if cfg.EmbedModel != "" {
		opts = append(opts, lcopenai.WithEmbeddingModel(cfg.EmbedModel))
	}

	client, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: 创建客户端失败: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("langchain: 创建 embedder 失败: %w", err)
	}

	return &Provider{model: client, embedder: embedder}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embedder.EmbedDocuments(ctx, texts)
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return p.embedder.EmbedQuery(ctx, text)
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.GenerateResponse, error) {
	return p.generate(ctx, messages, nil, opts)
}

// StreamChat 流式对话，使用 langchaingo 的 streaming 回调。
func (p *Provider) StreamChat(ctx context.Context, messages []llm.Message, onToken func(string) error, opts ...llm.CallOption) (*llm.GenerateResponse, error) {
	return p.generate(ctx, messages, onToken, opts)
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.CallOption) (*llm.GenerateResponse, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.generate(ctx, messages, nil, opts)
}

func (p *Provider) generate(ctx context.Context, messages []llm.Message, onToken func(string) error, opts []llm.CallOption) (*llm.GenerateResponse, error) {
	callOpts := toCallOptions(llm.ApplyCallOptions(opts...))

	var streamed strings.Builder
	if onToken != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed.Write(chunk)
			return onToken(string(chunk))
		}))
	}

	resp, err := p.model.GenerateContent(ctx, toMessageContent(messages), callOpts...)
	if err != nil {
		return &llm.GenerateResponse{Content: streamed.String()}, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("未返回响应内容")
	}

	choice := resp.Choices[0]
	content := choice.Content
	if content == "" {
		content = streamed.String()
	}
	return &llm.GenerateResponse{Content: content, TokenUsage: usageFromInfo(choice.GenerationInfo)}, nil
}

func toMessageContent(messages []llm.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func toCallOptions(o llm.CallOptions) []llms.CallOption {
	var opts []llms.CallOption
	if o.Model != "" {
		opts = append(opts, llms.WithModel(o.Model))
	}
	if o.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(o.MaxTokens))
	}
	if o.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*o.Temperature))
	}
	if o.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}
	return opts
}

// usageFromInfo 读取 langchaingo openai 客户端写入 GenerationInfo 的用量字段。
func usageFromInfo(info map[string]any) *llm.TokenUsage {
	in, okIn := info["PromptTokens"].(int)
	out, okOut := info["CompletionTokens"].(int)
	if !okIn && !okOut {
		return nil
	}
	total, ok := info["TotalTokens"].(int)
	if !ok {
		total = in + out
	}
	return &llm.TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: total}
}
