package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// HeaderConversationID carries the conversation a stream belongs to.
const HeaderConversationID = "X-Conversation-ID"

// streamDone terminates every successful stream.
const streamDone = "data: [DONE]\n\n"

// ChatRequest represents a chat request.
type ChatRequest struct {
	Message        string `json:"message" validate:"notblank,max=8000"`
	ConversationID string `json:"conversation_id" validate:"omitempty,max=64"`
	TopK           int    `json:"top_k" validate:"min=0,max=50"`
}

// ChatStream runs admission and streams generation events as server-sent events.
// Rejections are answered with the JSON envelope before any event is written.
func (h *RAGHandler) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	session, err := h.service.Chat(c.Request.Context(), biz.ChatRequest{
		Caller:         caller(c),
		Message:        req.Message,
		ConversationID: req.ConversationID,
		TopK:           req.TopK,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set(HeaderConversationID, session.ConversationID)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-session.Events:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, ev); err != nil {
				_ = c.Error(err)
				return
			}
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// writeEvent writes one event as an SSE data frame. done is sent as [DONE].
func writeEvent(w io.Writer, ev biz.Event) error {
	if ev.Kind == biz.EventDone {
		_, err := io.WriteString(w, streamDone)
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// HistoryQuery represents the history list parameters.
type HistoryQuery struct {
	Limit int `form:"limit" validate:"min=0,max=100"`
}

// History lists the caller's conversations, most recently active first.
func (h *RAGHandler) History(c *gin.Context) {
	var q HistoryQuery
	if err := bindQuery(c, &q); err != nil {
		response.Fail(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	convs, err := h.service.Conversations(c.Request.Context(), caller(c), q.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, convs)
}

// Messages returns every message of one of the caller's conversations.
func (h *RAGHandler) Messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, msgs)
}
