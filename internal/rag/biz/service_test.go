package biz

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/llm"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
)

type serviceFixture struct {
	accounts      *store.AccountStore
	conversations *store.ConversationStore
	chat          *fakeChat
	service       *Service
}

func newServiceFixture(t *testing.T, balances map[string]float64) *serviceFixture {
	t.Helper()
	db := newTestDB(t)
	f := &serviceFixture{
		accounts:      store.NewAccountStore(db),
		conversations: store.NewConversationStore(db),
		chat:          &fakeChat{stream: streamTokens("Noted.")},
	}
	for id, bal := range balances {
		_, err := f.accounts.EnsureAccount(context.Background(), id, "", bal)
		require.NoError(t, err)
	}

	vectors := store.NewMemoryStore(3)
	docs := store.NewDocumentStore(db)
	emb := &fakeEmbedder{}
	retriever := NewRetriever(vectors, emb, nil, nil, nil, RetrieverConfig{}, nil)
	router := stubRouter{}
	orchestrator := NewOrchestrator(router, retriever, f.chat, NewLedger(f.accounts, 500, nil),
		OrchestratorConfig{SystemPrompt: "sys", HistoryTurns: 5}, nil)

	f.service = NewService(
		NewAdmission(f.accounts, AdmissionConfig{Threshold: 0.1, StandardModel: "std"}, nil),
		orchestrator,
		router,
		retriever,
		NewIndexer(vectors, emb, docs, nil, IndexerConfig{ChunkSize: 500, ChunkOverlap: 50}, nil),
		f.accounts,
		f.conversations,
		docs,
		ServiceConfig{HistoryTurns: 5, SignupCredits: 30, TopK: 5, RedactPII: true},
	)
	return f
}

func TestChatRejectedBeforeAnyEvent(t *testing.T) {
	f := newServiceFixture(t, map[string]float64{"poor": 0.05})

	session, err := f.service.Chat(context.Background(), ChatRequest{Caller: "poor", Message: "hello"})
	require.Error(t, err)
	assert.Nil(t, session)
	assert.True(t, errors.IsCode(err, errors.ErrRAGInsufficientCredits.Code))
	assert.Zero(t, f.chat.calls.Load(), "nothing is generated")

	convs, err := f.conversations.ListByUser(context.Background(), "poor", 10)
	require.NoError(t, err)
	assert.Empty(t, convs)

	_, err = f.service.Chat(context.Background(), ChatRequest{Caller: "", Message: "hello"})
	assert.True(t, errors.IsCode(err, errors.ErrRAGIdentityRequired.Code))

	_, err = f.service.Chat(context.Background(), ChatRequest{Caller: "poor", Message: "   "})
	assert.True(t, errors.IsCode(err, errors.ErrRAGInvalidRequest.Code))
}

func TestChatCreatesConversationAndBills(t *testing.T) {
	f := newServiceFixture(t, map[string]float64{"u1": 30})
	long := strings.Repeat("س", 80)

	session, err := f.service.Chat(context.Background(), ChatRequest{Caller: "u1", Message: long})
	require.NoError(t, err)
	assert.Equal(t, "std", session.Model)

	evs := collect(session.Events)
	assert.Equal(t, EventDone, evs[len(evs)-1].Kind)

	conv, err := f.conversations.Get(context.Background(), session.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "u1", conv.UserID)
	assert.Equal(t, strings.Repeat("س", 50), conv.Title)

	msgs, err := f.service.Messages(context.Background(), "u1", session.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, string(llm.RoleUser), msgs[0].Role)
	assert.Equal(t, "Noted.", msgs[1].Content)

	acct, err := f.service.Account(context.Background(), "u1")
	require.NoError(t, err)
	assert.Less(t, acct.Balance, 30.0)

	usage, err := f.service.Usage(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, "std", usage[0].Model)
}

func TestChatContinuesConversationWithHistory(t *testing.T) {
	f := newServiceFixture(t, map[string]float64{"u1": 30, "u2": 30})

	first, err := f.service.Chat(context.Background(), ChatRequest{Caller: "u1", Message: "turn 0"})
	require.NoError(t, err)
	collect(first.Events)
	for i := 1; i < 4; i++ {
		s, err := f.service.Chat(context.Background(), ChatRequest{Caller: "u1", Message: fmt.Sprintf("turn %d", i), ConversationID: first.ConversationID})
		require.NoError(t, err)
		assert.Equal(t, first.ConversationID, s.ConversationID)
		collect(s.Events)
	}

	var sent []llm.Message
	f.chat.stream = func(ctx context.Context, msgs []llm.Message, onToken func(string) error, o llm.CallOptions) (*llm.GenerateResponse, error) {
		sent = msgs
		return streamTokens("ok")(ctx, msgs, onToken, o)
	}
	s, err := f.service.Chat(context.Background(), ChatRequest{Caller: "u1", Message: "latest", ConversationID: first.ConversationID})
	require.NoError(t, err)
	collect(s.Events)

	// system + 5 history turns + current question
	require.Len(t, sent, 7)
	assert.Equal(t, "Noted.", sent[1].Content)
	assert.Equal(t, "turn 3", sent[4].Content)
	assert.Equal(t, "Noted.", sent[5].Content)
	assert.Equal(t, "latest", sent[6].Content)

	_, err = f.service.Chat(context.Background(), ChatRequest{Caller: "u2", Message: "peek", ConversationID: first.ConversationID})
	assert.True(t, errors.IsCode(err, errors.ErrRAGConversationMissing.Code))
	_, err = f.service.Messages(context.Background(), "u2", first.ConversationID)
	assert.True(t, errors.IsCode(err, errors.ErrRAGConversationMissing.Code))
	_, err = f.service.Chat(context.Background(), ChatRequest{Caller: "u1", Message: "x", ConversationID: "missing"})
	assert.True(t, errors.IsCode(err, errors.ErrRAGConversationMissing.Code))

	convs, err := f.service.Conversations(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestRegister(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.Account(context.Background(), "new")
	assert.True(t, errors.IsCode(err, errors.ErrRAGAccountNotFound.Code))

	acct, err := f.service.Register(context.Background(), "new", "new@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 30, acct.Balance, 1e-9)

	// registering twice keeps the balance
	_, _, err = NewLedger(f.accounts, 500, nil).Charge(context.Background(), "new", "", 500, 0)
	require.NoError(t, err)
	again, err := f.service.Register(context.Background(), "new", "new@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 29, again.Balance, 1e-9)

	_, err = f.service.Register(context.Background(), "", "")
	assert.True(t, errors.IsCode(err, errors.ErrRAGIdentityRequired.Code))
}

func TestSetTierRoutesToPremiumModel(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, map[string]float64{"u1": 50})

	admission := NewAdmission(f.accounts, AdmissionConfig{Threshold: 0.1, PremiumMinBalance: 10, StandardModel: "std", PremiumModel: "pro"}, nil)
	acct, err := admission.Admit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "std", admission.SelectModel(acct))

	acct, err = f.service.SetTier(ctx, "u1", model.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, model.TierPremium, acct.Tier)

	acct, err = admission.Admit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pro", admission.SelectModel(acct))

	_, err = f.service.SetTier(ctx, "ghost", model.TierPremium)
	assert.True(t, errors.IsCode(err, errors.ErrRAGAccountNotFound.Code))
	_, err = f.service.SetTier(ctx, "u1", "gold")
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParam.Code))
}

func TestServiceSearchAndDocuments(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Ingest(ctx, Record{Content: "housing target 1.5M", SourceURI: "housing.pdf", Scope: "public"})
	require.NoError(t, err)
	_, err = f.service.Ingest(ctx, Record{Content: "internal memo", SourceURI: "memo.txt", Scope: "private", OwnerID: "ownerA"})
	require.NoError(t, err)

	results, err := f.service.Search(ctx, "ownerB", "housing", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"housing.pdf"}, resultSources(results))

	_, err = f.service.Search(ctx, "ownerB", " ", 5)
	assert.True(t, errors.IsCode(err, errors.ErrRAGInvalidRequest.Code))

	docs, total, err := f.service.Documents(ctx, "ownerB", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "housing.pdf", docs[0].SourceURI)

	_, total, err = f.service.Documents(ctx, "ownerA", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
