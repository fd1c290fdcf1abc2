package llm

// CallOptions 单次调用的生成参数。零值表示沿用供应商配置。
type CallOptions struct {
	// Model 覆盖供应商默认 Chat 模型（用于按套餐选择模型）。
	Model string
	// MaxTokens 最大生成 token 数。
	MaxTokens int
	// Temperature 采样温度。
	Temperature *float64
	// JSONMode 要求模型输出 JSON 对象。
	JSONMode bool
}

// CallOption 配置单次调用。
type CallOption func(*CallOptions)

// WithModel 指定本次调用使用的模型。
func WithModel(model string) CallOption {
	return func(o *CallOptions) { o.Model = model }
}

// WithMaxTokens 限制本次调用的输出长度。
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// WithTemperature 设置本次调用的采样温度。
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

// WithJSONMode 要求 JSON 输出。
func WithJSONMode() CallOption {
	return func(o *CallOptions) { o.JSONMode = true }
}

// ApplyCallOptions 合并调用参数。
func ApplyCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
