package main

import (
	"log/slog"

	"crm-backend/internal/config"
	"crm-backend/internal/httpapi"
	"crm-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// newRouter builds the engine and its global middleware.
// Keep this file free of business logic; routes live in internal/httpapi.
func newRouter(cfg config.Config, log *slog.Logger, h httpapi.Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(corsConfig(cfg.App.CORSOrigins)))

	httpapi.Register(r, h)
	return r
}

// corsConfig allows the configured origins, or every origin when none are set.
// config.Validate rejects an empty list in production.
func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", "X-Request-Id")
	c.ExposeHeaders = []string{"Content-Disposition", "X-Request-Id"}
	return c
}
