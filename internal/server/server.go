// Package server exposes a small read-only HTTP surface for monitoring the
// catalog: a health check, aggregate stats, and the top list.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kinobot/internal/engagement"
	"kinobot/internal/storage"
)

type Server struct {
	router *gin.Engine
	store  *storage.Store
	engine *engagement.Engine
	log    *zap.Logger
}

func NewServer(store *storage.Store, engine *engagement.Engine, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		store:  store,
		engine: engine,
		log:    log,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/top", s.handleTop)
	}
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"movies":      s.store.MovieCount(),
		"users":       s.store.UserCount(),
		"total_views": s.store.TotalViews(),
	})
}

func (s *Server) handleTop(c *gin.Context) {
	n := 10
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be an integer between 1 and 100"})
			return
		}
		n = parsed
	}

	items := s.engine.Top(n)
	out := make([]gin.H, 0, len(items))
	for _, it := range items {
		out = append(out, gin.H{
			"code":   it.Code,
			"name":   it.Name,
			"rating": it.Rating,
			"likes":  it.Likes,
			"views":  it.Views,
		})
	}
	c.JSON(http.StatusOK, gin.H{"top": out})
}

func (s *Server) Run(addr string) error {
	s.log.Info("HTTP server starting", zap.String("addr", addr))
	return s.router.Run(addr)
}
