// README: Public drop listings, nearby search and the caller's per-drop status.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dropspot/internal/modules/claim"
	"dropspot/internal/modules/drop"
	"dropspot/internal/types"
)

type DropService interface {
	Get(ctx context.Context, id int64) (*drop.Drop, error)
	List(ctx context.Context, f drop.Filter, page types.Page) ([]drop.Drop, error)
	ListActive(ctx context.Context, page types.Page) ([]drop.Drop, error)
	ListUpcoming(ctx context.Context, page types.Page) ([]drop.Drop, error)
	Nearby(ctx context.Context, q drop.NearbyQuery) ([]drop.NearbyDrop, error)
}

type DropStatusReader interface {
	DropStatus(ctx context.Context, dropID, userID int64) (*claim.DropStatus, error)
}

type DropHandler struct {
	drops  DropService
	status DropStatusReader
}

func NewDropHandler(drops DropService, status DropStatusReader) *DropHandler {
	return &DropHandler{drops: drops, status: status}
}

func (h *DropHandler) List(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	status := drop.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		writeError(c, http.StatusBadRequest, drop.ErrInvalidStatus.Error())
		return
	}
	drops, err := h.drops.List(c.Request.Context(), drop.Filter{Status: status}, page)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(drops))
}

func (h *DropHandler) ListActive(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	drops, err := h.drops.ListActive(c.Request.Context(), page)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(drops))
}

func (h *DropHandler) ListUpcoming(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	drops, err := h.drops.ListUpcoming(c.Request.Context(), page)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(drops))
}

type nearbyReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	RadiusKm  float64  `json:"radius_km"`
}

func (h *DropHandler) Nearby(c *gin.Context) {
	var req nearbyReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	drops, err := h.drops.Nearby(c.Request.Context(), drop.NearbyQuery{
		Point:    types.Point{Lat: *req.Latitude, Lng: *req.Longitude},
		RadiusKm: req.RadiusKm,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, nonNil(drops))
}

func (h *DropHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.drops.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DropHandler) MyStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.status.DropStatus(c.Request.Context(), id, caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
