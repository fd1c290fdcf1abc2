// Package router provides RAG service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/rag/handler"
)

// Register registers the RAG service routes.
func Register(engine *gin.Engine, rag *handler.RAGHandler, ops *handler.OpsHandler) {
	logger.Info("Registering RAG routes...")

	engine.GET("/healthz", ops.Healthz)
	engine.GET("/metrics", ops.Metrics)

	v1 := engine.Group("/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("/stream", rag.ChatStream)
			chat.GET("/history", rag.History)
			chat.GET("/:id", rag.Messages)
		}

		v1.POST("/search", rag.Search)

		v1.POST("/documents", rag.Ingest)
		v1.GET("/documents", rag.Documents)

		v1.GET("/account", rag.Account)
		v1.POST("/account", rag.Register)
		v1.GET("/account/usage", rag.Usage)
		v1.PUT("/accounts/:id/tier", rag.SetTier)
	}

	logger.Info("HTTP routes registered")
}
