// Package api exposes the HTTP surface: event ingestion, tenant reloads,
// scenario listings and health.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/botforge/scenario/pkg/cache"
	"github.com/botforge/scenario/pkg/config"
	"github.com/botforge/scenario/pkg/database"
	"github.com/botforge/scenario/pkg/engine"
	"github.com/botforge/scenario/pkg/queue"
)

// TenantReloader re-reads a tenant's scheduled scenarios; the scheduler
// satisfies it. Nil when the scheduler is disabled.
type TenantReloader interface {
	ReloadTenant(ctx context.Context, tenantID int64) error
}

// Server wires the HTTP handlers to the engine and its supporting pieces.
type Server struct {
	cfg       *config.Config
	engine    *engine.Engine
	pool      *queue.WorkerPool
	scheduler TenantReloader
	kv        cache.Store
	db        *database.Client
}

// NewServer creates the API server. scheduler and db may be nil.
func NewServer(cfg *config.Config, eng *engine.Engine, pool *queue.WorkerPool,
	sched TenantReloader, kv cache.Store, db *database.Client) *Server {
	return &Server{
		cfg:       cfg,
		engine:    eng,
		pool:      pool,
		scheduler: sched,
		kv:        kv,
		db:        db,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders())

	router.GET("/health", s.healthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/events", s.ingestEventHandler)
		v1.POST("/tenants/:id/reload", s.reloadTenantHandler)
		v1.GET("/tenants/:id/scenarios", s.listScenariosHandler)
	}
	return router
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.HTTP.Host, s.cfg.HTTP.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
