// README: Admin endpoints; permission checks happen in the admin service.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dropspot/internal/auth"
	"dropspot/internal/modules/admin"
	"dropspot/internal/modules/claim"
	"dropspot/internal/modules/drop"
	"dropspot/internal/types"
)

type AdminService interface {
	CreateDrop(ctx context.Context, p *auth.Principal, cmd drop.CreateCommand) (*drop.Drop, error)
	UpdateDrop(ctx context.Context, p *auth.Principal, id int64, cmd drop.UpdateCommand) (*drop.Drop, error)
	SoftDeleteDrop(ctx context.Context, p *auth.Principal, id int64) error
	ApproveClaim(ctx context.Context, p *auth.Principal, claimID int64) (*claim.Claim, error)
	RejectClaim(ctx context.Context, p *auth.Principal, claimID int64) (*claim.Claim, error)
	ListClaims(ctx context.Context, p *auth.Principal, f claim.ListFilter, page types.Page) ([]claim.Claim, error)
	DropClaims(ctx context.Context, p *auth.Principal, dropID int64, page types.Page) ([]claim.Claim, error)
	DropWaitlist(ctx context.Context, p *auth.Principal, dropID int64, page types.Page) ([]admin.WaitlistRow, error)
	Stats(ctx context.Context, p *auth.Principal) (*admin.Stats, error)
}

type AdminHandler struct {
	admin AdminService
}

func NewAdminHandler(svc AdminService) *AdminHandler {
	return &AdminHandler{admin: svc}
}

type createDropReq struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	ImageURL      string     `json:"image_url"`
	Address       string     `json:"address"`
	TotalQuantity int        `json:"total_quantity"`
	Latitude      *float64   `json:"latitude"`
	Longitude     *float64   `json:"longitude"`
	RadiusMeters  int        `json:"radius_meters"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
}

func (h *AdminHandler) CreateDrop(c *gin.Context) {
	var req createDropReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil || req.StartTime == nil || req.EndTime == nil {
		writeError(c, http.StatusBadRequest, "latitude, longitude, start_time and end_time are required")
		return
	}
	if req.RadiusMeters == 0 {
		req.RadiusMeters = drop.DefaultRadiusMeters
	}
	d, err := h.admin.CreateDrop(c.Request.Context(), caller(c), drop.CreateCommand{
		Title:         req.Title,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Address:       req.Address,
		TotalQuantity: req.TotalQuantity,
		Location:      types.Point{Lat: *req.Latitude, Lng: *req.Longitude},
		RadiusMeters:  req.RadiusMeters,
		StartTime:     *req.StartTime,
		EndTime:       *req.EndTime,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

type updateDropReq struct {
	Title         *string      `json:"title"`
	Description   *string      `json:"description"`
	ImageURL      *string      `json:"image_url"`
	Address       *string      `json:"address"`
	TotalQuantity *int         `json:"total_quantity"`
	RadiusMeters  *int         `json:"radius_meters"`
	StartTime     *time.Time   `json:"start_time"`
	EndTime       *time.Time   `json:"end_time"`
	Status        *drop.Status `json:"status"`
	IsActive      *bool        `json:"is_active"`
}

func (h *AdminHandler) UpdateDrop(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateDropReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.admin.UpdateDrop(c.Request.Context(), caller(c), id, drop.UpdateCommand{
		Title:         req.Title,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Address:       req.Address,
		TotalQuantity: req.TotalQuantity,
		RadiusMeters:  req.RadiusMeters,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        req.Status,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *AdminHandler) DeleteDrop(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.SoftDeleteDrop(c.Request.Context(), caller(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, messageResponse{Message: "drop deactivated"})
}

func (h *AdminHandler) ListClaims(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	var q struct {
		Status string `form:"status"`
		DropID int64  `form:"drop_id"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "drop_id must be an integer")
		return
	}
	status := claim.Status(q.Status)
	if status != "" && !status.Valid() {
		writeError(c, http.StatusBadRequest, claim.ErrInvalidStatus.Error())
		return
	}
	claims, err := h.admin.ListClaims(c.Request.Context(), caller(c), claim.ListFilter{Status: status, DropID: q.DropID}, page)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(claims))
}

func (h *AdminHandler) ApproveClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cl, err := h.admin.ApproveClaim(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cl)
}

func (h *AdminHandler) RejectClaim(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cl, err := h.admin.RejectClaim(c.Request.Context(), caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cl)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context(), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *AdminHandler) DropWaitlist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	rows, err := h.admin.DropWaitlist(c.Request.Context(), caller(c), id, page)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(rows))
}

func (h *AdminHandler) DropClaims(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	claims, err := h.admin.DropClaims(c.Request.Context(), caller(c), id, page)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(claims))
}
