// README: Waitlist join/leave and position endpoints.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dropspot/internal/modules/waitlist"
)

type WaitlistService interface {
	Join(ctx context.Context, dropID, userID int64) (*waitlist.Entry, error)
	Leave(ctx context.Context, dropID, userID int64) error
	Position(ctx context.Context, dropID, userID int64) (*waitlist.Position, error)
	Count(ctx context.Context, dropID int64) (int, error)
	ListMine(ctx context.Context, userID int64) ([]waitlist.Entry, error)
}

type WaitlistHandler struct {
	waitlist WaitlistService
}

func NewWaitlistHandler(svc WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: svc}
}

type joinReq struct {
	DropID int64 `json:"drop_id"`
}

func (h *WaitlistHandler) Join(c *gin.Context) {
	var req joinReq
	if !bindJSON(c, &req) {
		return
	}
	if req.DropID <= 0 {
		writeError(c, http.StatusBadRequest, "drop_id is required")
		return
	}
	entry, err := h.waitlist.Join(c.Request.Context(), req.DropID, caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, entry)
}

func (h *WaitlistHandler) Leave(c *gin.Context) {
	dropID, ok := pathID(c, "drop_id")
	if !ok {
		return
	}
	if err := h.waitlist.Leave(c.Request.Context(), dropID, caller(c).UserID); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, messageResponse{Message: "left the waitlist"})
}

func (h *WaitlistHandler) ListMine(c *gin.Context) {
	entries, err := h.waitlist.ListMine(c.Request.Context(), caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(entries))
}

func (h *WaitlistHandler) Count(c *gin.Context) {
	dropID, ok := pathID(c, "drop_id")
	if !ok {
		return
	}
	n, err := h.waitlist.Count(c.Request.Context(), dropID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drop_id": dropID, "waitlist_count": n})
}

func (h *WaitlistHandler) Position(c *gin.Context) {
	dropID, ok := pathID(c, "drop_id")
	if !ok {
		return
	}
	pos, err := h.waitlist.Position(c.Request.Context(), dropID, caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pos)
}
