// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Vector store backends.
const (
	VectorStoreMilvus = "milvus"
	VectorStoreMemory = "memory"
)

// Options contains RAG pipeline configuration.
type Options struct {
	// VectorStore selects the vector index backend (milvus|memory).
	VectorStore string `json:"vector-store" mapstructure:"vector-store"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of passages used for grounding.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinFetchK is the lower bound of neighbours fetched per query variant.
	MinFetchK int `json:"min-fetch-k" mapstructure:"min-fetch-k"`

	// JudgeCandidates is how many fused candidates the relevance judge sees.
	JudgeCandidates int `json:"judge-candidates" mapstructure:"judge-candidates"`

	// JudgeTimeout bounds the relevance judge call.
	JudgeTimeout time.Duration `json:"judge-timeout" mapstructure:"judge-timeout"`

	// RouterTimeout bounds the routing classifier and translation calls.
	RouterTimeout time.Duration `json:"router-timeout" mapstructure:"router-timeout"`

	// HistoryTurns is how many prior turns are sent to the model.
	HistoryTurns int `json:"history-turns" mapstructure:"history-turns"`

	// TokensPerCredit converts tokens into credits.
	TokensPerCredit float64 `json:"tokens-per-credit" mapstructure:"tokens-per-credit"`

	// AdmissionThreshold is the minimum balance required to start a chat.
	AdmissionThreshold float64 `json:"admission-threshold" mapstructure:"admission-threshold"`

	// PremiumMinBalance is the balance a premium account needs for the premium model.
	PremiumMinBalance float64 `json:"premium-min-balance" mapstructure:"premium-min-balance"`

	// SignupCredits is the starting balance of a new account.
	SignupCredits float64 `json:"signup-credits" mapstructure:"signup-credits"`

	// RedactPII masks national IDs, phone numbers and emails before retrieval.
	RedactPII bool `json:"redact-pii" mapstructure:"redact-pii"`

	// ResultCacheTTL caches search results in Redis; zero disables it.
	ResultCacheTTL time.Duration `json:"result-cache-ttl" mapstructure:"result-cache-ttl"`

	// Workers is the size of the retrieval worker pool.
	Workers int `json:"workers" mapstructure:"workers"`

	// SystemPrompt is the system prompt for grounded answers.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// DefaultSystemPrompt is the default system prompt for grounded answers.
const DefaultSystemPrompt = `You are a knowledgeable assistant. Answer using the reference passages below when they are relevant.
If the passages do not contain the answer, say so briefly and answer from general knowledge.
Reply in the same language as the question.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		VectorStore:        VectorStoreMilvus,
		Collection:         "rag_chunks",
		EmbeddingDim:       1536,
		ChunkSize:          1000,
		ChunkOverlap:       200,
		TopK:               5,
		MinFetchK:          20,
		JudgeCandidates:    10,
		JudgeTimeout:       8 * time.Second,
		RouterTimeout:      5 * time.Second,
		HistoryTurns:       5,
		TokensPerCredit:    500,
		AdmissionThreshold: 0.1,
		PremiumMinBalance:  1,
		SignupCredits:      30,
		RedactPII:          true,
		ResultCacheTTL:     0,
		Workers:            64,
		SystemPrompt:       DefaultSystemPrompt,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.StringVar(&o.VectorStore, p+"vector-store", o.VectorStore, "Vector index backend (milvus|memory).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum chunk size in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of passages used for grounding.")
	fs.IntVar(&o.MinFetchK, p+"min-fetch-k", o.MinFetchK, "Minimum neighbours fetched per query variant.")
	fs.IntVar(&o.JudgeCandidates, p+"judge-candidates", o.JudgeCandidates, "Candidates passed to the relevance judge.")
	fs.DurationVar(&o.JudgeTimeout, p+"judge-timeout", o.JudgeTimeout, "Relevance judge timeout.")
	fs.DurationVar(&o.RouterTimeout, p+"router-timeout", o.RouterTimeout, "Routing and translation timeout.")
	fs.IntVar(&o.HistoryTurns, p+"history-turns", o.HistoryTurns, "Prior conversation turns sent to the model.")
	fs.Float64Var(&o.TokensPerCredit, p+"tokens-per-credit", o.TokensPerCredit, "Tokens per billing credit.")
	fs.Float64Var(&o.AdmissionThreshold, p+"admission-threshold", o.AdmissionThreshold, "Minimum balance to start a chat.")
	fs.Float64Var(&o.PremiumMinBalance, p+"premium-min-balance", o.PremiumMinBalance, "Minimum balance for the premium model.")
	fs.Float64Var(&o.SignupCredits, p+"signup-credits", o.SignupCredits, "Starting balance for new accounts.")
	fs.BoolVar(&o.RedactPII, p+"redact-pii", o.RedactPII, "Mask personal data before retrieval.")
	fs.DurationVar(&o.ResultCacheTTL, p+"result-cache-ttl", o.ResultCacheTTL, "Search result cache TTL (0 disables).")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Retrieval worker pool size.")
	fs.StringVar(&o.SystemPrompt, p+"system-prompt", o.SystemPrompt, "System prompt for grounded answers.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.VectorStore {
	case VectorStoreMilvus, VectorStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("rag.vector-store %q is not supported", o.VectorStore))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.TokensPerCredit <= 0 {
		errs = append(errs, fmt.Errorf("tokens-per-credit must be positive"))
	}
	if o.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("history-turns must not be negative"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.MinFetchK <= 0 {
		o.MinFetchK = 20
	}
	if o.JudgeCandidates <= 0 {
		o.JudgeCandidates = 10
	}
	return nil
}
