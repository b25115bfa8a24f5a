package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/internal/db"
	"codeberg.org/storefront/server/storefront/sessions"
)

// holds all dependencies and state for the session server
type Server struct {
	db       *pgxpool.Pool
	config   *config.Config
	codec    *sessions.Codec
	store    sessions.Store
	cache    *sessions.RedisCache
	sweeper  *sessions.Sweeper
	migrator *db.Migrator
	router   *gin.Engine
}
