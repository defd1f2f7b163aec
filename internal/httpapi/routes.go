package httpapi

import (
	"crm-backend/internal/audit"
	"crm-backend/internal/auth"
	"crm-backend/internal/rbac"

	"github.com/gin-gonic/gin"
)

// ClientIP stores the caller address on the request context for audit events.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// Register mounts the API on r. Every /api/v1 route except login, refresh
// and dev-login requires an access token.
func Register(r *gin.Engine, h Handlers) {
	useJSONFieldNames()

	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/api/v1", ClientIP())
	requireToken := auth.RequireAccessToken(h.Auth)

	a := v1.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/dev-login", h.DevLogin)
	a.GET("/me", requireToken, h.Me)

	l := v1.Group("/leads", requireToken)
	l.GET("", h.ListLeads)
	l.POST("", h.CreateLead)
	l.GET("/export", rbac.RequireAdmin(), h.ExportLeads)
	l.POST("/claim", h.ClaimLead)
	l.GET("/:lead_id", h.GetLead)
	l.PUT("/:lead_id", h.UpdateLead)
	l.PATCH("/:lead_id", h.UpdateLead)
	l.POST("/:lead_id/claim", h.ClaimLead)

	adm := v1.Group("/admin", requireToken, rbac.RequireAdmin())
	adm.POST("/leads/import", h.ImportLeads)
	adm.POST("/process-csv", h.ImportLeads)
	adm.GET("/metrics", h.Metrics)
	adm.GET("/users", h.ListUsers)
	adm.POST("/users", h.CreateUser)
	adm.PUT("/users/:user_id", h.UpdateUser)
}
