package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// IngestRequest represents a document ingest request.
type IngestRequest struct {
	Content   string `json:"content" validate:"notblank"`
	SourceURI string `json:"source_uri" validate:"required,max=512"`
	Scope     string `json:"scope" validate:"required"`
}

// Ingest indexes one record. Records are always owned by the caller, and
// public or system records additionally require the publish permission.
func (h *RAGHandler) Ingest(c *gin.Context) {
	who := caller(c)
	if who == "" {
		response.Fail(c, errors.ErrRAGIdentityRequired)
		return
	}

	var req IngestRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	switch store.Scope(req.Scope) {
	case store.ScopePublic, store.ScopeSystem:
		allowed, err := h.can(c, ResourceDocuments, ActionPublish)
		if err != nil {
			response.Fail(c, errors.ErrInternal.WithCause(err))
			return
		}
		if !allowed {
			response.Fail(c, errors.ErrForbidden.WithMessagef("scope %q requires the %s role", req.Scope, RoleCurator))
			return
		}
	}

	res, err := h.service.Ingest(c.Request.Context(), biz.Record{
		Content:   req.Content,
		SourceURI: req.SourceURI,
		Scope:     req.Scope,
		OwnerID:   who,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

// PageQuery represents pagination parameters.
type PageQuery struct {
	Page     int `form:"page" validate:"min=0"`
	PageSize int `form:"page_size" validate:"min=0,max=100"`
}

// Documents lists the documents visible to the caller.
func (h *RAGHandler) Documents(c *gin.Context) {
	var q PageQuery
	if err := bindQuery(c, &q); err != nil {
		response.Fail(c, err)
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	docs, total, err := h.service.Documents(c.Request.Context(), caller(c), q.Page, q.PageSize)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, response.NewPage(docs, total, q.Page, q.PageSize))
}
