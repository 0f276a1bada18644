// README: Assistant chat and quota endpoints.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dropspot/internal/assistant"
	"dropspot/internal/auth"
)

type AssistantService interface {
	Chat(ctx context.Context, p *auth.Principal, req assistant.Request) (*assistant.Answer, error)
	Remaining(ctx context.Context, p *auth.Principal) (int, error)
}

type AssistantHandler struct {
	assistant AssistantService
}

func NewAssistantHandler(svc AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: svc}
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	req := assistant.Request{IncludeContext: true}
	if !bindJSON(c, &req) {
		return
	}
	ans, err := h.assistant.Chat(c.Request.Context(), caller(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ans)
}

func (h *AssistantHandler) Quota(c *gin.Context) {
	left, err := h.assistant.Remaining(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"remaining": left})
}
