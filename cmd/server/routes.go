package main

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/api/rest/cart"
	"codeberg.org/storefront/server/api/rest/health"
	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/internal/middleware"
)

// sets up the router with all middleware and API routes
func NewRouter(server *Server) (*gin.Engine, error) {
	if server.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", health.Handler)

	rateLimit, err := middleware.RateLimit(server.cache.Client(), "300-M")
	if err != nil {
		return nil, err
	}

	sessionMiddleware := middleware.Session(middleware.SessionDeps{
		Codec:        server.codec,
		Store:        server.store,
		Cache:        server.cache,
		ClearCart:    func() { logger.Debug("cart cleared with destroyed session") },
		SecureCookie: server.config.Environment == "production",
	})

	v1 := router.Group("/api/v1")
	v1.Use(rateLimit)
	v1.Use(auth.OptionalAuthMiddleware())
	v1.Use(sessionMiddleware)

	{
		cart.RegisterRoutes(v1)
	}

	return router, nil
}

// allows the storefront frontend origins configured in the environment
func corsMiddleware() gin.HandlerFunc {
	origins := []string{"http://localhost:3000"}

	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
