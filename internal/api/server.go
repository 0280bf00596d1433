// Package api exposes the admin HTTP surface consumed by the dashboard:
// schedule/account/connection management, post listings and manual
// publishing.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blogger-agent/internal/pipeline"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/pkg/logger"
)

// Refresher rebuilds scheduler triggers after a schedule mutation
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Runner executes a manual pipeline pass
type Runner interface {
	Run(ctx context.Context, trigger pipeline.Trigger) *pipeline.RunResult
}

// Server is the admin API server
type Server struct {
	repo      storage.Repository
	scheduler Refresher
	runner    Runner
	log       *logger.Logger
	http      *http.Server
}

// NewServer creates the admin API server
func NewServer(addr string, repo storage.Repository, scheduler Refresher, runner Runner, log *logger.Logger) *Server {
	s := &Server{
		repo:      repo,
		scheduler: scheduler,
		runner:    runner,
		log:       log.WithComponent("api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/schedules", s.listSchedules)
		v1.POST("/schedules", s.createSchedule)
		v1.PUT("/schedules/:id", s.updateSchedule)
		v1.DELETE("/schedules/:id", s.deleteSchedule)
		v1.POST("/schedules/:id/toggle", s.toggleSchedule)

		v1.GET("/accounts", s.listAccounts)
		v1.POST("/accounts", s.connectAccount)
		v1.DELETE("/accounts/:id", s.deleteAccount)

		v1.GET("/accounts/:id/connections", s.listConnections)
		v1.POST("/connections", s.createConnection)
		v1.DELETE("/connections/:id", s.deleteConnection)

		v1.GET("/niches", s.listNiches)
		v1.GET("/posts", s.listPosts)
		v1.GET("/research", s.listResearch)

		v1.POST("/publish", s.publishNow)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("Admin API listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "blogger-agent",
	})
}

// refreshTriggers re-syncs cron state after any schedule mutation
func (s *Server) refreshTriggers(c *gin.Context) {
	if err := s.scheduler.Refresh(c.Request.Context()); err != nil {
		s.log.Error().Err(err).Msg("Scheduler refresh failed after mutation")
	}
}
