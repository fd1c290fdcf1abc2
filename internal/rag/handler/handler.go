// Package handler provides HTTP handlers for RAG service.
package handler

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/internal/model"
	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/pkg/infra/middleware"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
	"github.com/kart-io/sentinel-rag/pkg/validator"
)

// Service is the business surface the handlers need.
type Service interface {
	Chat(ctx context.Context, req biz.ChatRequest) (*biz.ChatSession, error)
	Search(ctx context.Context, caller, query string, topK int) ([]biz.ScoredResult, error)
	Ingest(ctx context.Context, rec biz.Record) (*biz.IngestResult, error)
	Documents(ctx context.Context, caller string, page, size int) ([]model.Document, int64, error)
	Conversations(ctx context.Context, caller string, limit int) ([]model.Conversation, error)
	Messages(ctx context.Context, caller, convID string) ([]model.Message, error)
	Account(ctx context.Context, caller string) (*model.Account, error)
	Usage(ctx context.Context, caller string, limit int) ([]model.UsageEntry, error)
	Register(ctx context.Context, caller, email string) (*model.Account, error)
	SetTier(ctx context.Context, accountID, tier string) (*model.Account, error)
}

var _ Service = (*biz.Service)(nil)

// Authorizer decides role-gated actions such as publishing shared documents.
type Authorizer interface {
	Authorize(ctx context.Context, subject, resource, action string) (bool, error)
}

const (
	// ResourceDocuments is the policy object for the document corpus.
	ResourceDocuments = "documents"
	// ResourceAccounts is the policy object for credit accounts.
	ResourceAccounts = "accounts"
	// ActionPublish is required to ingest public or system records.
	ActionPublish = "publish"
	// ActionManage is required to change another account's tier.
	ActionManage = "manage"
	// RoleCurator holds ActionPublish on ResourceDocuments.
	RoleCurator = "curator"
	// RoleAdmin holds ActionManage on ResourceAccounts.
	RoleAdmin = "admin"
)

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service Service
	authz   Authorizer
}

// NewRAGHandler creates a new RAGHandler. A nil authz denies every
// role-gated action.
func NewRAGHandler(service Service, authz Authorizer) *RAGHandler {
	return &RAGHandler{service: service, authz: authz}
}

// can reports whether the caller may perform action on resource.
func (h *RAGHandler) can(c *gin.Context, resource, action string) (bool, error) {
	if h.authz == nil {
		return false, nil
	}
	return h.authz.Authorize(c.Request.Context(), caller(c), resource, action)
}

// bindJSON decodes the request body into req and validates it.
func bindJSON(c *gin.Context, req interface{}) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.ErrBodyTooLarge
		}
		return errors.ErrBindFailed.WithCause(err)
	}
	if len(body) == 0 {
		return errors.ErrBindFailed.WithMessage("request body is empty")
	}
	if err := json.Unmarshal(body, req); err != nil {
		return errors.ErrBindFailed.WithCause(err)
	}
	return validate(c, req)
}

// bindQuery decodes query parameters into req and validates it.
func bindQuery(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return errors.ErrInvalidParam.WithMessage(err.Error())
	}
	return validate(c, req)
}

func validate(c *gin.Context, req interface{}) error {
	verrs := validator.StructWithLang(req, lang(c))
	if !verrs.HasErrors() {
		return nil
	}
	return errors.ErrInvalidParam.WithMessage(verrs.First())
}

func lang(c *gin.Context) string {
	if strings.HasPrefix(strings.ToLower(c.GetHeader("Accept-Language")), validator.LangZH) {
		return validator.LangZH
	}
	return validator.LangEN
}

func caller(c *gin.Context) string {
	return middleware.CallerFrom(c)
}
