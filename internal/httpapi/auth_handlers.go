package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"crm-backend/internal/auth"
	"crm-backend/internal/users"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	auth.TokenPair
	User users.User `json:"user"`
}

// Login accepts a JSON body or an OAuth2 password form (username, password).
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	} else {
		req.Email = c.PostForm("username")
		req.Password = c.PostForm("password")
		if req.Email == "" || req.Password == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password are required", "kind": "validation"})
			return
		}
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondTokens(c, u)
}

// Refresh exchanges a refresh token for a new pair. Name and role are reloaded
// so a role change takes effect on the next refresh.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token", "kind": kindUnauthenticated})
		return
	}
	u, err := h.Users.Get(c.Request.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists", "kind": kindUnauthenticated})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondTokens(c, u)
}

// DevLogin signs in as the development admin, creating it when missing.
// It is only served in the local environment.
func (h Handlers) DevLogin(c *gin.Context) {
	if !h.AllowDevLogin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "dev login is only available in local development", "kind": "forbidden"})
		return
	}
	u, _, err := h.Users.EnsureUser(c.Request.Context(), users.DefaultAdmin)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondTokens(c, u)
}

func (h Handlers) Me(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) respondTokens(c *gin.Context, u users.User) {
	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Name, u.Role)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not issue token", "kind": "storage"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{TokenPair: pair, User: u})
}
