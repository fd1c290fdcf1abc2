// Package ragsvc provides the RAG Service server implementation.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/internal/rag/handler"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/router"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/internal/rag/watcher"
	casbinauthz "github.com/kart-io/sentinel-rag/pkg/authz/casbin"
	"github.com/kart-io/sentinel-rag/pkg/component/database"
	"github.com/kart-io/sentinel-rag/pkg/component/milvus"
	"github.com/kart-io/sentinel-rag/pkg/infra/app"
	"github.com/kart-io/sentinel-rag/pkg/infra/middleware"
	"github.com/kart-io/sentinel-rag/pkg/infra/pool"
	"github.com/kart-io/sentinel-rag/pkg/infra/server"
	httpserver "github.com/kart-io/sentinel-rag/pkg/infra/server/http"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
	"github.com/kart-io/sentinel-rag/pkg/llm"
	// Register LLM providers
	_ "github.com/kart-io/sentinel-rag/pkg/llm/langchain"
	_ "github.com/kart-io/sentinel-rag/pkg/llm/ollama"
	_ "github.com/kart-io/sentinel-rag/pkg/llm/openai"
	"github.com/kart-io/sentinel-rag/pkg/llm/resilience"
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

// Name is the name of the application.
const Name = "sentinel-rag"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	JWTOptions        *jwtopts.Options
	MilvusOptions     *milvusopts.Options
	RedisOptions      *redisopts.Options
	DatabaseOptions   *dbopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	ClassifierOptions *llmopts.ProviderOptions
	RAGOptions        *ragopts.Options
	TracingOptions    *tracingopts.Options
	WatcherOptions    *watcheropts.Options
	AuthzOptions      *authzopts.Options
}

// Server represents the RAG server.
type Server struct {
	shutdownTimeout time.Duration
	runnables       []server.Runnable
	closers         []func(ctx context.Context)
}

// NewServer initializes and returns a new Server instance.
// On failure every resource opened so far is released.
func (cfg *Config) NewServer(ctx context.Context) (srv *Server, err error) {
	printBanner(cfg)

	s := &Server{shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout}
	defer func() {
		if err != nil {
			s.close(context.Background())
		}
	}()

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting RAG service...")

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.onClose(func(ctx context.Context) { _ = tp.Shutdown(ctx) })

	// 3. 初始化关系型存储（账户、用量、会话、文档登记）
	db, err := database.Open(ctx, cfg.DatabaseOptions, model.All()...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.onClose(func(context.Context) { _ = database.Close(db) })

	authorizer, err := newAuthorizer(db, cfg.AuthzOptions)
	if err != nil {
		return nil, err
	}

	// 4. 初始化向量存储
	vectors, err := newVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.onClose(func(ctx context.Context) { _ = vectors.Close(ctx) })
	if err := vectors.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure vector collection: %w", err)
	}
	logger.Infow("Vector store initialized",
		"backend", cfg.RAGOptions.VectorStore,
		"collection", cfg.RAGOptions.Collection,
	)

	// 5. 初始化 Redis（可选，用于嵌入与检索结果缓存）
	var redisClient *goredis.Client
	if cfg.RedisOptions.Enabled {
		redisClient, err = cfg.RedisOptions.NewClient(ctx)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
			redisClient = nil
		} else {
			client := redisClient
			s.onClose(func(context.Context) { _ = client.Close() })
			logger.Infow("Redis cache initialized", "redis", cfg.RedisOptions.String())
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 6. 初始化 LLM 供应商
	embedder, err := newEmbeddingProvider(cfg.EmbeddingOptions, redisClient)
	if err != nil {
		return nil, err
	}
	chat, err := newChatProvider(cfg.ChatOptions)
	if err != nil {
		return nil, err
	}
	classifier, err := newChatProvider(cfg.ClassifierOptions)
	if err != nil {
		return nil, err
	}

	// 7. 初始化工作池
	retrievalPool, err := pool.NewPool("retrieval", pool.RetrievalPool, pool.RetrievalPoolConfig(cfg.RAGOptions.Workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval pool: %w", err)
	}
	s.onClose(func(context.Context) { _ = retrievalPool.ReleaseTimeout(5 * time.Second) })
	ingestPool, err := pool.NewPool("ingest", pool.IngestPool, pool.IngestPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	s.onClose(func(context.Context) { _ = ingestPool.ReleaseTimeout(5 * time.Second) })

	// 8. 初始化 Biz 层
	m := metrics.New()
	ragService := newService(cfg, db, vectors, redisClient, embedder, chat, classifier, retrievalPool, m)
	logger.Infow("RAG service initialized",
		"redact_pii", cfg.RAGOptions.RedactPII,
		"result_cache_ttl", cfg.RAGOptions.ResultCacheTTL,
		"classifier.available", !llm.IsUnavailable(classifier),
	)

	// 9. 初始化 HTTP 服务
	httpServer := httpserver.NewServer(cfg.HTTPOptions,
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Tracing("/healthz", "/metrics"),
		middleware.Logger(),
		middleware.BodyLimit(cfg.HTTPOptions.MaxBodyBytes),
		middleware.Auth(cfg.JWTOptions),
	)
	router.Register(httpServer.Engine(),
		handler.NewRAGHandler(ragService, authorizer),
		handler.NewOpsHandler(m, healthChecks(db, redisClient, vectors), retrievalPool, ingestPool),
	)
	s.runnables = append(s.runnables, httpServer)

	// 10. 目录监听（可选）
	if cfg.WatcherOptions.Enabled {
		s.runnables = append(s.runnables, watcher.New(cfg.WatcherOptions, ragService, ingestPool))
		logger.Infow("Directory watcher enabled", "dir", cfg.WatcherOptions.Dir, "scope", cfg.WatcherOptions.Scope)
	}

	logger.Infow("RAG service is ready", "addr", cfg.HTTPOptions.Addr)
	return s, nil
}

// Run starts the server and blocks until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		s.close(closeCtx)
		_ = logger.Flush()
	}()
	return server.Run(ctx, s.shutdownTimeout, s.runnables...)
}

func (s *Server) onClose(fn func(ctx context.Context)) {
	s.closers = append(s.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (s *Server) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i](ctx)
	}
	s.closers = nil
}

func newVectorStore(ctx context.Context, cfg *Config) (store.VectorStore, error) {
	if cfg.RAGOptions.VectorStore == ragopts.VectorStoreMemory {
		logger.Warn("Using the in-memory vector store, the index is lost on restart")
		return store.NewMemoryStore(cfg.RAGOptions.EmbeddingDim), nil
	}
	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	return store.NewMilvusStore(client, cfg.RAGOptions.Collection, cfg.RAGOptions.EmbeddingDim), nil
}

func newService(
	cfg *Config,
	db *gorm.DB,
	vectors store.VectorStore,
	redisClient *goredis.Client,
	embedder llm.EmbeddingProvider,
	chat, classifier llm.ChatProvider,
	retrievalPool *pool.Pool,
	m *metrics.RAGMetrics,
) *biz.Service {
	opts := cfg.RAGOptions

	// nil 接口值与 nil 指针不同，未连接 Redis 时必须传入无类型 nil。
	var cacheClient goredis.UniversalClient
	if redisClient != nil {
		cacheClient = redisClient
	}

	accounts := store.NewAccountStore(db)
	conversations := store.NewConversationStore(db)
	documents := store.NewDocumentStore(db)
	cache := biz.NewResultCache(cacheClient, biz.ResultCacheConfig{TTL: opts.ResultCacheTTL})

	queryRouter := biz.NewRouter(classifier, biz.RouterConfig{Timeout: opts.RouterTimeout}, m)
	retriever := biz.NewRetriever(vectors, embedder,
		biz.NewJudge(classifier, opts.JudgeTimeout, m),
		retrievalPool, cache,
		biz.RetrieverConfig{MinFetchK: opts.MinFetchK, JudgeCandidates: opts.JudgeCandidates},
		m,
	)
	orchestrator := biz.NewOrchestrator(queryRouter, retriever, chat,
		biz.NewLedger(accounts, opts.TokensPerCredit, m),
		biz.OrchestratorConfig{
			SystemPrompt: opts.SystemPrompt,
			HistoryTurns: opts.HistoryTurns,
			TopK:         opts.TopK,
			RedactPII:    opts.RedactPII,
		},
		m,
	)
	admission := biz.NewAdmission(accounts, biz.AdmissionConfig{
		Threshold:         opts.AdmissionThreshold,
		PremiumMinBalance: opts.PremiumMinBalance,
		StandardModel:     cfg.ChatOptions.Model,
		PremiumModel:      cfg.ChatOptions.PremiumModel,
	}, m)
	indexer := biz.NewIndexer(vectors, embedder, documents, cache, biz.IndexerConfig{
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
	}, m)

	return biz.NewService(admission, orchestrator, queryRouter, retriever, indexer,
		accounts, conversations, documents,
		biz.ServiceConfig{
			HistoryTurns:  opts.HistoryTurns,
			SignupCredits: opts.SignupCredits,
			TopK:          opts.TopK,
			RedactPII:     opts.RedactPII,
		},
	)
}

// newEmbeddingProvider 创建嵌入供应商。缺少密钥时降级为不可用能力，
// 启用时依次包裹重试熔断与 Redis 缓存。
func newEmbeddingProvider(opts *llmopts.ProviderOptions, redisClient *goredis.Client) (llm.EmbeddingProvider, error) {
	if opts.RequiresAPIKey() && opts.APIKey == "" {
		logger.Warnw("Embedding provider has no API key, retrieval and ingestion are unavailable", "provider", opts.Provider)
		return llm.NewUnavailable(opts.Section() + " api key is not configured"), nil
	}

	provider, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if opts.Resilience {
		provider = resilience.NewResilientEmbeddingProvider(provider, resilience.DefaultRetryConfig(), resilience.DefaultCircuitBreakerConfig())
	}
	if redisClient != nil {
		provider = llm.NewCachedEmbeddingProvider(provider, redisClient, llm.DefaultEmbeddingCacheConfig())
	}
	logger.Infow("Embedding provider initialized",
		"provider", opts.Provider,
		"model", opts.Model,
		"cached", redisClient != nil,
	)
	return provider, nil
}

func newChatProvider(opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	if opts.RequiresAPIKey() && opts.APIKey == "" {
		logger.Warnw("Chat provider has no API key, capability is unavailable",
			"section", opts.Section(),
			"provider", opts.Provider,
		)
		return llm.NewUnavailable(opts.Section() + " api key is not configured"), nil
	}

	provider, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", opts.Section(), err)
	}
	if opts.Resilience {
		provider = resilience.NewResilientChatProvider(provider, resilience.DefaultRetryConfig(), resilience.DefaultCircuitBreakerConfig())
	}
	logger.Infow("Chat provider initialized",
		"section", opts.Section(),
		"provider", opts.Provider,
		"model", opts.Model,
	)
	return provider, nil
}

func healthChecks(db *gorm.DB, redisClient *goredis.Client, vectors store.VectorStore) map[string]handler.Check {
	checks := map[string]handler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"vector_store": func(ctx context.Context) error {
			_, err := vectors.Count(ctx)
			return err
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s, premium %s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model, cfg.ChatOptions.PremiumModel)
	fmt.Printf("  Classifier: %s (%s)\n", cfg.ClassifierOptions.Provider, cfg.ClassifierOptions.Model)
	fmt.Printf("  Vector store: %s\n", cfg.RAGOptions.VectorStore)
	fmt.Printf("  Database: %s\n", cfg.DatabaseOptions.Driver)
}

// newAuthorizer loads the policy store, grants the built-in roles their
// permissions and assigns the configured members.
func newAuthorizer(db *gorm.DB, opts *authzopts.Options) (*casbinauthz.Authorizer, error) {
	a, err := casbinauthz.New(db, opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authorizer: %w", err)
	}
	if err := a.Grant(handler.RoleCurator, handler.ResourceDocuments, handler.ActionPublish); err != nil {
		return nil, err
	}
	if err := a.Grant(handler.RoleAdmin, handler.ResourceAccounts, handler.ActionManage); err != nil {
		return nil, err
	}
	if err := a.AssignRole(handler.RoleCurator, opts.Curators...); err != nil {
		return nil, err
	}
	if err := a.AssignRole(handler.RoleAdmin, opts.Admins...); err != nil {
		return nil, err
	}
	logger.Infow("Authorizer initialized", "curators", len(opts.Curators), "admins", len(opts.Admins))
	return a, nil
}
