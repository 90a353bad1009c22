package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabrag/internal/app"
	"collabrag/internal/transport/http/response"
)

type Asker interface {
	Ask(ctx context.Context, scopeID string, history []app.Turn) (*app.Answer, error)
}

type PromptHandler struct {
	asker Asker
}

type PromptRequest struct {
	Messages []app.Turn `json:"messages" binding:"required,min=1"`
}

func NewPromptHandler(asker Asker) *PromptHandler {
	return &PromptHandler{asker: asker}
}

// Prompt streams the answer as server-sent events: one data event per
// fragment, then "done", or "error" if the answer was cut short.
func (h *PromptHandler) Prompt(c *gin.Context) {
	scope, ok := collabScope(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collab id")
		return
	}
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := h.asker.Ask(c.Request.Context(), scope.ID, req.Messages)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for fragment, err := range answer.Tokens {
		if err != nil {
			if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(err.Error())))); writeErr == nil {
				flusher.Flush()
			}
			return
		}
		if _, writeErr := c.Writer.Write([]byte(sseData(fragment))); writeErr != nil {
			return
		}
		flusher.Flush()
	}

	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: [DONE]\n\n")); writeErr == nil {
		flusher.Flush()
	}
}
