package biz

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/llm"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
)

const conversationTitleRunes = 50

// AccountService 账户管理。
type AccountService interface {
	AccountRepository
	EnsureAccount(ctx context.Context, id, email string, credits float64) (*model.Account, error)
	Usage(ctx context.Context, id string, limit int) ([]model.UsageEntry, error)
	SetTier(ctx context.Context, id, tier string) error
}

// ConversationRepository 会话存储。
type ConversationRepository interface {
	Create(ctx context.Context, userID, title string) (*model.Conversation, error)
	Get(ctx context.Context, convID string) (*model.Conversation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Conversation, error)
	AppendTurn(ctx context.Context, convID, role, content string) error
	GetRecentTurns(ctx context.Context, convID string, limit int) ([]model.Message, error)
	Messages(ctx context.Context, convID string) ([]model.Message, error)
}

// DocumentLister 列出调用方可见的文档。
type DocumentLister interface {
	ListVisible(ctx context.Context, caller string, offset, limit int) ([]model.Document, int64, error)
}

// ServiceConfig RAG 服务配置。
type ServiceConfig struct {
	// HistoryTurns 发送给模型的历史轮数。
	HistoryTurns int
	// SignupCredits 新账户初始积分。
	SignupCredits float64
	// TopK 默认检索数。
	TopK int
	// RedactPII 检索前遮蔽个人信息。
	RedactPII bool
}

// ChatRequest 对话请求。
type ChatRequest struct {
	Caller         string
	Message        string
	ConversationID string
	TopK           int
}

// ChatSession 已通过准入的对话，Events 在生成结束后关闭。
type ChatSession struct {
	ConversationID string
	Model          string
	Events         <-chan Event
}

// Service 组合准入、生成、检索、入库与会话管理。
type Service struct {
	admission     *Admission
	orchestrator  *Orchestrator
	router        QueryRouter
	retriever     Searcher
	indexer       *Indexer
	accounts      AccountService
	conversations ConversationRepository
	documents     DocumentLister
	config        ServiceConfig
}

// NewService 创建 RAG 服务实例。
func NewService(
	admission *Admission,
	orchestrator *Orchestrator,
	router QueryRouter,
	retriever Searcher,
	indexer *Indexer,
	accounts AccountService,
	conversations ConversationRepository,
	documents DocumentLister,
	config ServiceConfig,
) *Service {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	return &Service{
		admission:     admission,
		orchestrator:  orchestrator,
		router:        router,
		retriever:     retriever,
		indexer:       indexer,
		accounts:      accounts,
		conversations: conversations,
		documents:     documents,
		config:        config,
	}
}

// Chat 准入检查通过后开始生成。准入失败时返回错误，不产生任何事件。
// 未指定会话时新建会话，标题取消息前 50 个字符。
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatSession, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("message must not be empty")
	}

	acct, err := s.admission.Admit(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	modelName := s.admission.SelectModel(acct)

	convID, history, err := s.prepareConversation(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.AppendTurn(ctx, convID, string(llm.RoleUser), req.Message); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	events := s.orchestrator.Stream(ctx, StreamRequest{
		Query:   req.Message,
		History: history,
		Caller:  req.Caller,
		Model:   modelName,
		TopK:    req.TopK,
		OnAnswer: func(ctx context.Context, answer string) {
			if err := s.conversations.AppendTurn(ctx, convID, string(llm.RoleAssistant), answer); err != nil {
				logger.Global().WithCtx(ctx).Warnw("保存助手回复失败", "conversation_id", convID, "error", err.Error())
			}
		},
	})
	return &ChatSession{ConversationID: convID, Model: modelName, Events: events}, nil
}

// prepareConversation 返回会话 ID 与按时间正序排列的最近历史。
func (s *Service) prepareConversation(ctx context.Context, req ChatRequest) (string, []Turn, error) {
	if req.ConversationID == "" {
		title := textutil.TruncateString(strings.TrimSpace(req.Message), conversationTitleRunes)
		conv, err := s.conversations.Create(ctx, req.Caller, title)
		if err != nil {
			return "", nil, errors.ErrDatabase.WithCause(err)
		}
		return conv.ID, nil, nil
	}

	if _, err := s.ownedConversation(ctx, req.Caller, req.ConversationID); err != nil {
		return "", nil, err
	}
	if s.config.HistoryTurns == 0 {
		return req.ConversationID, nil, nil
	}

	recent, err := s.conversations.GetRecentTurns(ctx, req.ConversationID, s.config.HistoryTurns)
	if err != nil {
		return "", nil, errors.ErrDatabase.WithCause(err)
	}
	history := make([]Turn, len(recent))
	for i, m := range recent {
		history[len(recent)-1-i] = Turn{Role: m.Role, Content: m.Content}
	}
	return req.ConversationID, history, nil
}

// ownedConversation 返回 caller 拥有的会话；不存在或属于他人时都返回 ErrRAGConversationMissing。
func (s *Service) ownedConversation(ctx context.Context, caller, convID string) (*model.Conversation, error) {
	conv, err := s.conversations.Get(ctx, convID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrRAGConversationMissing
	}
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if conv.UserID != caller {
		return nil, errors.ErrRAGConversationMissing
	}
	return conv, nil
}

// Search 只检索不生成，也不计费。
func (s *Service) Search(ctx context.Context, caller, query string, topK int) ([]ScoredResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("query must not be empty")
	}
	if topK <= 0 {
		topK = s.config.TopK
	}
	if s.config.RedactPII {
		query = RedactPII(query)
	}
	exp := s.router.ExpandQuery(ctx, query)
	return s.retriever.Search(ctx, exp.Variants, topK, caller), nil
}

// Ingest 入库一条记录。
func (s *Service) Ingest(ctx context.Context, rec Record) (*IngestResult, error) {
	return s.indexer.Ingest(ctx, rec)
}

// Documents 分页列出 caller 可见的文档。
func (s *Service) Documents(ctx context.Context, caller string, page, size int) ([]model.Document, int64, error) {
	docs, total, err := s.documents.ListVisible(ctx, caller, (page-1)*size, size)
	if err != nil {
		return nil, 0, errors.ErrDatabase.WithCause(err)
	}
	return docs, total, nil
}

// Conversations 列出 caller 的会话。
func (s *Service) Conversations(ctx context.Context, caller string, limit int) ([]model.Conversation, error) {
	if caller == "" {
		return nil, errors.ErrRAGIdentityRequired
	}
	convs, err := s.conversations.ListByUser(ctx, caller, limit)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return convs, nil
}

// Messages 返回 caller 拥有的会话的全部消息。
func (s *Service) Messages(ctx context.Context, caller, convID string) ([]model.Message, error) {
	if caller == "" {
		return nil, errors.ErrRAGIdentityRequired
	}
	if _, err := s.ownedConversation(ctx, caller, convID); err != nil {
		return nil, err
	}
	msgs, err := s.conversations.Messages(ctx, convID)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return msgs, nil
}

// Account 返回 caller 的账户。
func (s *Service) Account(ctx context.Context, caller string) (*model.Account, error) {
	if caller == "" {
		return nil, errors.ErrRAGIdentityRequired
	}
	acct, err := s.accounts.Get(ctx, caller)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrRAGAccountNotFound
	}
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return acct, nil
}

// Usage 返回 caller 最近的用量记录。
func (s *Service) Usage(ctx context.Context, caller string, limit int) ([]model.UsageEntry, error) {
	if caller == "" {
		return nil, errors.ErrRAGIdentityRequired
	}
	entries, err := s.accounts.Usage(ctx, caller, limit)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return entries, nil
}

// Register 为新身份开户并发放初始积分，已存在的账户原样返回。
func (s *Service) Register(ctx context.Context, caller, email string) (*model.Account, error) {
	if caller == "" {
		return nil, errors.ErrRAGIdentityRequired
	}
	acct, err := s.accounts.EnsureAccount(ctx, caller, email, s.config.SignupCredits)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return acct, nil
}

// SetTier 修改账户套餐并返回更新后的账户，premium 账户在余额充足时路由到高级模型。
func (s *Service) SetTier(ctx context.Context, accountID, tier string) (*model.Account, error) {
	switch tier {
	case model.TierFree, model.TierPremium:
	default:
		return nil, errors.ErrInvalidParam.WithMessagef("tier %q is not one of free, premium", tier)
	}
	if err := s.accounts.SetTier(ctx, accountID, tier); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrRAGAccountNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	logger.Infow("账户套餐已更新", "account_id", accountID, "tier", tier)
	return s.Account(ctx, accountID)
}
