package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// RegisterRequest represents an account signup request.
type RegisterRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=128"`
}

// Account returns the caller's balance and tier.
func (h *RAGHandler) Account(c *gin.Context) {
	acct, err := h.service.Account(c.Request.Context(), caller(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, acct)
}

// Register opens an account for the caller with the signup credits.
// Registering an existing account returns it unchanged.
func (h *RAGHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			response.Fail(c, err)
			return
		}
	}

	acct, err := h.service.Register(c.Request.Context(), caller(c), req.Email)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, acct)
}

// TierRequest represents an account tier change.
type TierRequest struct {
	Tier string `json:"tier" validate:"required"`
}

// SetTier moves the account named in the path to another tier.
// Only callers holding the manage permission on accounts may do so.
func (h *RAGHandler) SetTier(c *gin.Context) {
	if caller(c) == "" {
		response.Fail(c, errors.ErrRAGIdentityRequired)
		return
	}
	allowed, err := h.can(c, ResourceAccounts, ActionManage)
	if err != nil {
		response.Fail(c, errors.ErrInternal.WithCause(err))
		return
	}
	if !allowed {
		response.Fail(c, errors.ErrForbidden.WithMessagef("changing tiers requires the %s role", RoleAdmin))
		return
	}

	var req TierRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	acct, err := h.service.SetTier(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, acct)
}

// Usage lists the caller's most recent billed generations.
func (h *RAGHandler) Usage(c *gin.Context) {
	var q HistoryQuery
	if err := bindQuery(c, &q); err != nil {
		response.Fail(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	entries, err := h.service.Usage(c.Request.Context(), caller(c), q.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, entries)
}
