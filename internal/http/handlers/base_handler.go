// README: Base handler utilities (JSON helpers, path/query parsing, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dropspot/internal/assistant"
	"dropspot/internal/auth"
	"dropspot/internal/errs"
	"dropspot/internal/http/middleware"
	"dropspot/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

type geofenceResponse struct {
	Error          string  `json:"error"`
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   int     `json:"radius_meters"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps domain error kinds to HTTP statuses. Unclassified errors
// are attached to the context for the access log and answered with a generic 500.
func writeServiceError(c *gin.Context, err error) {
	var geo *errs.GeofenceError
	if errors.As(err, &geo) {
		writeJSON(c, http.StatusBadRequest, geofenceResponse{
			Error:          geo.Error(),
			DistanceMeters: geo.Distance,
			RadiusMeters:   geo.Radius,
		})
		return
	}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidState):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrInsufficientStock), errors.Is(err, errs.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrTokenExpired):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, assistant.ErrQuotaExceeded):
		writeError(c, http.StatusTooManyRequests, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// pageQuery reads skip/limit; out-of-range values are clamped by Page.Normalize.
func pageQuery(c *gin.Context) (types.Page, bool) {
	var q struct {
		Skip  int `form:"skip"`
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "skip and limit must be integers")
		return types.Page{}, false
	}
	return types.Page{Skip: q.Skip, Limit: q.Limit}.Normalize(), true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

// caller returns the authenticated principal; routes using it sit behind middleware.Auth.
func caller(c *gin.Context) *auth.Principal {
	return middleware.CallerPrincipal(c)
}
