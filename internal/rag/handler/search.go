package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// SearchRequest represents a retrieval-only request.
type SearchRequest struct {
	Query string `json:"query" validate:"notblank,max=2000"`
	TopK  int    `json:"top_k" validate:"min=0,max=50"`
}

// Search retrieves the chunks visible to the caller without generating an answer.
func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	results, err := h.service.Search(c.Request.Context(), caller(c), req.Query, req.TopK)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, results)
}
