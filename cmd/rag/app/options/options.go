// Package options contains flags and options for initializing the RAG server.
package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/sentinel-rag/internal/rag"
	"github.com/kart-io/sentinel-rag/pkg/infra/app"
	genericoptions "github.com/kart-io/sentinel-rag/pkg/options"
	authzopts "github.com/kart-io/sentinel-rag/pkg/options/authz"
	dbopts "github.com/kart-io/sentinel-rag/pkg/options/database"
	jwtopts "github.com/kart-io/sentinel-rag/pkg/options/jwt"
	llmopts "github.com/kart-io/sentinel-rag/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/sentinel-rag/pkg/options/milvus"
	ragopts "github.com/kart-io/sentinel-rag/pkg/options/rag"
	redisopts "github.com/kart-io/sentinel-rag/pkg/options/redis"
	httpopts "github.com/kart-io/sentinel-rag/pkg/options/server/http"
	tracingopts "github.com/kart-io/sentinel-rag/pkg/options/tracing"
	watcheropts "github.com/kart-io/sentinel-rag/pkg/options/watcher"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// JWTOptions contains bearer token verification settings.
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions contains the cache backend configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// DatabaseOptions contains the relational store for accounts, usage,
	// conversations and the document registry.
	DatabaseOptions *dbopts.Options `json:"database" mapstructure:"database"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// ClassifierOptions contains the low-latency model used for routing,
	// translation and relevance judging.
	ClassifierOptions *llmopts.ProviderOptions `json:"classifier" mapstructure:"classifier"`

	// RAGOptions contains RAG-specific configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// WatcherOptions contains the directory watcher configuration.
	WatcherOptions *watcheropts.Options `json:"watcher" mapstructure:"watcher"`

	// AuthzOptions contains role policy configuration.
	AuthzOptions *authzopts.Options `json:"authz" mapstructure:"authz"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		JWTOptions:        jwtopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		DatabaseOptions:   dbopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		ClassifierOptions: llmopts.NewClassifierOptions(),
		RAGOptions:        ragopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		WatcherOptions:    watcheropts.NewOptions(),
		AuthzOptions:      authzopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.ClassifierOptions.AddFlags(fss.FlagSet("classifier"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.WatcherOptions.AddFlags(fss.FlagSet("watcher"))
	o.AuthzOptions.AddFlags(fss.FlagSet("authz"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	for _, section := range o.sections() {
		if c, ok := section.(genericoptions.Completer); ok {
			if err := c.Complete(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *ServerOptions) sections() []genericoptions.IOptions {
	return []genericoptions.IOptions{
		o.HTTPOptions, o.LogOptions, o.JWTOptions, o.MilvusOptions,
		o.RedisOptions, o.DatabaseOptions, o.EmbeddingOptions, o.ChatOptions,
		o.ClassifierOptions, o.RAGOptions, o.TracingOptions, o.WatcherOptions,
		o.AuthzOptions,
	}
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.JWTOptions.Validate()...)
	if o.RAGOptions.VectorStore == ragopts.VectorStoreMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	if o.RedisOptions.Enabled {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.ClassifierOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.WatcherOptions.Validate()...)
	errs = append(errs, o.AuthzOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		JWTOptions:        o.JWTOptions,
		MilvusOptions:     o.MilvusOptions,
		RedisOptions:      o.RedisOptions,
		DatabaseOptions:   o.DatabaseOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		ClassifierOptions: o.ClassifierOptions,
		RAGOptions:        o.RAGOptions,
		TracingOptions:    o.TracingOptions,
		WatcherOptions:    o.WatcherOptions,
		AuthzOptions:      o.AuthzOptions,
	}, nil
}
