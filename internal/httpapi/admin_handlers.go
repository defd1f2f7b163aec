package httpapi

import (
	"net/http"

	"crm-backend/internal/users"

	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=255"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=ADMIN EMPLOYEE"`
}

type updateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Role     *string `json:"role" binding:"omitempty,oneof=ADMIN EMPLOYEE"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

func (h Handlers) Metrics(c *gin.Context) {
	m, err := h.Reporting.LeadMetrics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h Handlers) ListUsers(c *gin.Context) {
	skip, ok := queryInt(c, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.Users.List(c.Request.Context(), skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CreateUser(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	u, err := h.Users.Create(c.Request.Context(), p.ID, p.Role, users.CreateInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) UpdateUser(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	u, err := h.Users.Update(c.Request.Context(), p.ID, p.Role, c.Param("user_id"), users.UpdateInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
