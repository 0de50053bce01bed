// Package repository defines read access to persisted scenario entities and
// provides Postgres and in-memory implementations.
package repository

import (
	"context"
	"time"

	"github.com/botforge/scenario/pkg/models"
)

// Repository is the persistence contract the engine core reads through.
// Writes are limited to scheduled-run bookkeeping.
type Repository interface {
	GetScenariosByTenant(ctx context.Context, tenantID int64) ([]*models.Scenario, error)
	GetTriggersByScenario(ctx context.Context, scenarioID int64) ([]*models.Trigger, error)
	GetStepsByScenario(ctx context.Context, scenarioID int64) ([]*models.Step, error)
	GetTransitionsByStep(ctx context.Context, stepID int64) ([]*models.Transition, error)

	// GetScheduledScenarios returns scenarios with a non-empty schedule,
	// optionally restricted to one tenant (nil means all tenants).
	GetScheduledScenarios(ctx context.Context, tenantID *int64) ([]*models.Scenario, error)

	GetBotByTenant(ctx context.Context, tenantID int64) (*models.Bot, error)
	GetTenantByID(ctx context.Context, tenantID int64) (*models.Tenant, error)

	UpdateScenarioLastRun(ctx context.Context, scenarioID int64, ts time.Time) error
}
