// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
// 同一结构用于 embedding、chat 与 classifier 三个角色，section 决定 flag 前缀。
type ProviderOptions struct {
	section string

	// Provider 供应商名称（openai, ollama, langchain）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。需要密钥的供应商缺少密钥时能力降级为不可用。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// PremiumModel 高级套餐使用的模型（仅 chat 使用）。
	PremiumModel string `json:"premium-model" mapstructure:"premium-model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Resilience 是否在供应商外层启用重试与熔断。
	Resilience bool `json:"resilience" mapstructure:"resilience"`
}

func newProviderOptions(section, model string) *ProviderOptions {
	return &ProviderOptions{
		section:    section,
		Provider:   "openai",
		Model:      model,
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		Resilience: true,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return newProviderOptions("embedding", "text-embedding-3-small")
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	o := newProviderOptions("chat", "gpt-4o-mini")
	o.PremiumModel = "gpt-4o"
	o.Timeout = 120 * time.Second
	return o
}

// NewClassifierOptions 创建路由、翻译与相关性判定所用的低延迟模型配置。
func NewClassifierOptions() *ProviderOptions {
	o := newProviderOptions("classifier", "gpt-4o-mini")
	o.Timeout = 15 * time.Second
	o.MaxRetries = 0
	return o
}

// Section 返回配置段名称。
func (o *ProviderOptions) Section() string {
	return o.section
}

// RequiresAPIKey 报告该供应商是否需要密钥。
func (o *ProviderOptions) RequiresAPIKey() bool {
	return o.Provider == "openai"
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
	if o.BaseURL != "" {
		m["base_url"] = o.BaseURL
	}
	return m
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.section + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (openai|ollama|langchain).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	if o.section == "chat" {
		fs.StringVar(&o.PremiumModel, p+"premium-model", o.PremiumModel, "Model used for premium accounts.")
	}
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM HTTP retries.")
	fs.BoolVar(&o.Resilience, p+"resilience", o.Resilience, "Wrap the provider with retry and circuit breaker.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "openai", "ollama":
	case "langchain":
		if o.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base-url is required for langchain provider", o.section))
		}
	default:
		errs = append(errs, fmt.Errorf("%s.provider %q is not supported", o.section, o.Provider))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.section))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.section))
	}
	return errs
}
