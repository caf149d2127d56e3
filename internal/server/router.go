package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/handlers"
	"github.com/zfogg/sidechain/profiles/internal/middleware"
)

// ServiceName identifies the API in traces
const ServiceName = "sidechain-profiles"

// NewRouter builds the profile API
func NewRouter(h *handlers.Handlers, tokens *auth.TokenService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(ServiceName))
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "PUT", "PATCH", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}
	r.Use(cors.New(config))

	r.GET("/health", h.Health)
	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api/v1")
	users := api.Group("/users", middleware.RequireIdentity(tokens))
	{
		users.GET("/me", h.GetMyProfile)
		users.PATCH("/me", h.UpdateMyProfile)
		users.PUT("/me", h.UpdateMyProfile)
	}

	return r
}
