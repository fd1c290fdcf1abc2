package router

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kart-io/sentinel-rag/internal/rag/handler"
)

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	Register(engine, handler.NewRAGHandler(nil, nil), handler.NewOpsHandler(nil, nil))

	var got []string
	for _, r := range engine.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	assert.ElementsMatch(t, []string{
		"GET /healthz",
		"GET /metrics",
		"POST /v1/chat/stream",
		"GET /v1/chat/history",
		"GET /v1/chat/:id",
		"POST /v1/search",
		"POST /v1/documents",
		"GET /v1/documents",
		"GET /v1/account",
		"POST /v1/account",
		"GET /v1/account/usage",
		"PUT /v1/accounts/:id/tier",
	}, got)
}
