package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/botforge/scenario/pkg/cache"
	"github.com/botforge/scenario/pkg/database"
	"github.com/botforge/scenario/pkg/engine"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/queue"
	"github.com/botforge/scenario/pkg/version"
)

// ingestEventHandler accepts an event and enqueues it for asynchronous
// processing. The 202 response only acknowledges receipt.
func (s *Server) ingestEventHandler(c *gin.Context) {
	var event map[string]any
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(models.CodeValidation, "request body must be a JSON object"))
		return
	}

	if _, err := engine.ExtractTenantID(event); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(models.CodeValidation, "event must carry a numeric system.tenant_id"))
		return
	}

	if err := s.pool.Enqueue(event); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, errorResponse(models.CodeInternal, "event queue is full, retry later"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse(models.CodeInternal, err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":      "accepted",
		"queue_depth": s.pool.Depth(),
	})
}

// reloadTenantHandler rebuilds a tenant's snapshot, refreshes its scheduled
// scenarios and drops its key-value cache entries. System tenants are not
// reloadable through the public API.
func (s *Server) reloadTenantHandler(c *gin.Context) {
	tenantID, ok := s.tenantParam(c)
	if !ok {
		return
	}
	if tenantID <= s.cfg.Engine.MaxSystemTenantID {
		c.JSON(http.StatusForbidden, errorResponse(models.CodePermissionDenied, "system tenants cannot be reloaded via the public API"))
		return
	}

	ctx := c.Request.Context()
	if err := s.engine.ReloadTenant(ctx, tenantID); err != nil {
		slog.Error("Tenant reload failed", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse(models.CodeInternal, "reload failed"))
		return
	}

	if s.scheduler != nil {
		if err := s.scheduler.ReloadTenant(ctx, tenantID); err != nil {
			slog.Error("Scheduler reload failed", "tenant_id", tenantID, "error", err)
		}
	}
	if s.kv != nil {
		if n, err := s.kv.InvalidatePattern(ctx, cache.TenantPattern(tenantID)); err != nil {
			slog.Warn("Cache invalidation failed", "tenant_id", tenantID, "error", err)
		} else if n > 0 {
			slog.Debug("Invalidated tenant cache entries", "tenant_id", tenantID, "count", n)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "tenant_id": tenantID})
}

// listScenariosHandler returns the tenant's scenarios as seen by the current
// snapshot.
func (s *Server) listScenariosHandler(c *gin.Context) {
	tenantID, ok := s.tenantParam(c)
	if !ok {
		return
	}

	snap, err := s.engine.Snapshot(c.Request.Context(), tenantID)
	if err != nil {
		slog.Error("Snapshot build failed", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse(models.CodeInternal, "failed to load scenarios"))
		return
	}

	scenarios := make([]scenarioSummary, 0, len(snap.ScenarioIndex))
	for _, sc := range snap.ScenarioIndex {
		scenarios = append(scenarios, scenarioSummary{
			ID:          sc.ID,
			Name:        sc.Name,
			Description: sc.Description,
			Schedule:    sc.Schedule,
			Triggers:    len(sc.Triggers),
			Steps:       len(sc.Steps),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id": tenantID,
		"built_at":  snap.BuiltAt,
		"scenarios": scenarios,
	})
}

// healthHandler reports the state of the engine's own components. External
// services are excluded so an upstream outage does not get this process
// restarted.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := gin.H{}

	if s.db != nil {
		dbHealth, err := database.Health(ctx, s.db.Pool())
		checks["database"] = dbHealth
		if err != nil {
			status = "unhealthy"
		}
	}

	poolHealth := s.pool.Health()
	checks["worker_pool"] = poolHealth
	if !poolHealth.IsHealthy && status == "healthy" {
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{"status": status, "version": version.Full(), "checks": checks})
}

func (s *Server) tenantParam(c *gin.Context) (int64, bool) {
	tenantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(models.CodeValidation, "tenant id must be an integer"))
		return 0, false
	}
	return tenantID, true
}

type scenarioSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
	Triggers    int    `json:"triggers"`
	Steps       int    `json:"steps"`
}

func errorResponse(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}
