// README: Claim create/verify/cancel endpoints for the signed-in user.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dropspot/internal/modules/claim"
	"dropspot/internal/types"
)

type ClaimService interface {
	Create(ctx context.Context, cmd claim.CreateCommand) (*claim.Claim, error)
	Verify(ctx context.Context, claimID, userID int64, code string) (*claim.Claim, error)
	Cancel(ctx context.Context, claimID, userID int64) error
	Get(ctx context.Context, claimID, userID int64) (*claim.Claim, error)
	ListMine(ctx context.Context, userID int64) ([]claim.Claim, error)
}

type ClaimHandler struct {
	claims ClaimService
}

func NewClaimHandler(svc ClaimService) *ClaimHandler {
	return &ClaimHandler{claims: svc}
}

type createClaimReq struct {
	DropID    int64    `json:"drop_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Quantity  int      `json:"quantity"`
}

func (h *ClaimHandler) Create(c *gin.Context) {
	var req createClaimReq
	if !bindJSON(c, &req) {
		return
	}
	if req.DropID <= 0 || req.Latitude == nil || req.Longitude == nil {
		writeError(c, http.StatusBadRequest, "drop_id, latitude and longitude are required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cl, err := h.claims.Create(c.Request.Context(), claim.CreateCommand{
		DropID:   req.DropID,
		UserID:   caller(c).UserID,
		Quantity: req.Quantity,
		Location: types.Point{Lat: *req.Latitude, Lng: *req.Longitude},
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cl)
}

type verifyReq struct {
	VerificationCode string `json:"verification_code"`
}

func (h *ClaimHandler) Verify(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req verifyReq
	if !bindJSON(c, &req) {
		return
	}
	code := strings.TrimSpace(req.VerificationCode)
	if code == "" {
		writeError(c, http.StatusBadRequest, "verification_code is required")
		return
	}
	cl, err := h.claims.Verify(c.Request.Context(), id, caller(c).UserID, code)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cl)
}

func (h *ClaimHandler) ListMine(c *gin.Context) {
	claims, err := h.claims.ListMine(c.Request.Context(), caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(claims))
}

func (h *ClaimHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cl, err := h.claims.Get(c.Request.Context(), id, caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cl)
}

func (h *ClaimHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.claims.Cancel(c.Request.Context(), id, caller(c).UserID); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, messageResponse{Message: "claim cancelled"})
}
