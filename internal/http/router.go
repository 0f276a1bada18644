// README: HTTP router registration and middleware chain.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dropspot/internal/auth"
	"dropspot/internal/http/handlers"
	"dropspot/internal/http/middleware"
	"dropspot/internal/metrics"
)

type RouterDeps struct {
	Verifier auth.TokenVerifier
	Drops    handlers.DropService
	Waitlist handlers.WaitlistService
	Claims   interface {
		handlers.ClaimService
		handlers.DropStatusReader
	}
	Admin handlers.AdminService
	// Assistant is optional; its routes are not registered when nil.
	Assistant handlers.AssistantService
	Gatherer  prometheus.Gatherer
	Metrics   metrics.Recorder
	Log       *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Log),
		middleware.Logging(deps.Log.Named("http")),
		middleware.Metrics(deps.Metrics),
	)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	requireUser := middleware.Auth(deps.Verifier)
	api := r.Group("/api")

	dropHandler := handlers.NewDropHandler(deps.Drops, deps.Claims)
	drops := api.Group("/drops")
	drops.GET("", dropHandler.List)
	drops.GET("/active", dropHandler.ListActive)
	drops.GET("/upcoming", dropHandler.ListUpcoming)
	drops.POST("/nearby", dropHandler.Nearby)
	drops.GET("/:id", dropHandler.Get)
	drops.GET("/:id/my-status", requireUser, dropHandler.MyStatus)

	waitlistHandler := handlers.NewWaitlistHandler(deps.Waitlist)
	wl := api.Group("/waitlist")
	wl.POST("/join", requireUser, waitlistHandler.Join)
	wl.DELETE("/leave/:drop_id", requireUser, waitlistHandler.Leave)
	wl.GET("/my-waitlist", requireUser, waitlistHandler.ListMine)
	wl.GET("/:drop_id/waitlist-count", waitlistHandler.Count)
	wl.GET("/:drop_id/my-position", requireUser, waitlistHandler.Position)

	claimHandler := handlers.NewClaimHandler(deps.Claims)
	claims := api.Group("/claims", requireUser)
	claims.POST("", claimHandler.Create)
	claims.POST("/:id/verify", claimHandler.Verify)
	claims.GET("/my-claims", claimHandler.ListMine)
	claims.GET("/:id", claimHandler.Get)
	claims.DELETE("/:id", claimHandler.Cancel)

	adminHandler := handlers.NewAdminHandler(deps.Admin)
	adm := api.Group("/admin", requireUser)
	adm.POST("/drops", adminHandler.CreateDrop)
	adm.PUT("/drops/:id", adminHandler.UpdateDrop)
	adm.DELETE("/drops/:id", adminHandler.DeleteDrop)
	adm.GET("/drops/:id/waitlist", adminHandler.DropWaitlist)
	adm.GET("/drops/:id/claims", adminHandler.DropClaims)
	adm.GET("/claims", adminHandler.ListClaims)
	adm.PUT("/claims/:id/approve", adminHandler.ApproveClaim)
	adm.PUT("/claims/:id/reject", adminHandler.RejectClaim)
	adm.GET("/stats", adminHandler.Stats)

	if deps.Assistant != nil {
		assistantHandler := handlers.NewAssistantHandler(deps.Assistant)
		ai := api.Group("/ai")
		ai.POST("/chat", middleware.OptionalAuth(deps.Verifier), assistantHandler.Chat)
		ai.GET("/quota", requireUser, assistantHandler.Quota)
	}

	return r
}
