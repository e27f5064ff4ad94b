package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/system-service/middleware"
)

// RegisterRoutes mounts the /api/v1 surface on r. Everything except login
// requires a token, and mutating requests are written to the account log.
// ws serves the tree event stream when it is not nil.
func RegisterRoutes(r gin.IRouter, d services.Deps, ws gin.HandlerFunc) {
	authHandler := NewAuthHandler(d)

	api := r.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.AuthMiddleware(), middleware.AuditTrail(services.NewSystemAuditLogService(d)))
	protected.GET("/auth/me", authHandler.Me)

	NewCategoryHandler(d).Register(protected)
	NewOrganizationHandler(d).Register(protected)
	NewRegionHandler(d).Register(protected)
	NewDictHandler(d).Register(protected)
	NewRoleHandler(d).Register(protected)
	NewMenuHandler(d).Register(protected)
	NewAuthGroupHandler(d).Register(protected)
	NewUserHandler(d).Register(protected)

	audit := protected.Group("/audit")
	NewSystemAuditHandler(d).Register(audit.Group("/system-logs"))
	NewCustomAuditHandler(d).Register(audit.Group("/custom-logs"))

	if ws != nil {
		protected.GET("/ws/tree-events", ws)
	}
}
