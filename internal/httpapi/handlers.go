package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"crm-backend/internal/auth"
	"crm-backend/internal/leads"
	"crm-backend/internal/reporting"
	"crm-backend/internal/users"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Users     *users.Service
	Leads     *leads.Service
	Reporting *reporting.Service

	// Health reports backing store reachability. Nil means always healthy.
	Health func(ctx context.Context) error

	// AllowDevLogin enables the passwordless development admin login.
	AllowDevLogin bool
	// MaxUploadBytes caps CSV uploads.
	MaxUploadBytes int64
}

// principal reads the identity that auth.RequireAccessToken placed on the request.
func principal(c *gin.Context) (leads.Principal, bool) {
	ctx := c.Request.Context()
	id, err := auth.UserID(ctx)
	if err != nil {
		return leads.Principal{}, false
	}
	role, err := auth.Role(ctx)
	if err != nil {
		return leads.Principal{}, false
	}
	return leads.Principal{ID: id, Name: auth.Name(ctx), Role: role}, true
}

func mustPrincipal(c *gin.Context) (leads.Principal, bool) {
	p, ok := principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "kind": kindUnauthenticated})
	}
	return p, ok
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": key + " must be a non-negative integer",
			"kind":  string(leads.KindValidation),
		})
		return 0, false
	}
	return n, true
}

func (h Handlers) Healthz(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
