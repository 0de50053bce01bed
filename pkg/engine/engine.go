package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/botforge/scenario/pkg/actions"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/placeholder"
	"github.com/botforge/scenario/pkg/repository"
)

// Engine is the event-processing facade: it owns the snapshot cache and runs
// matched scenarios through the step executor.
type Engine struct {
	repo      repository.Repository
	bus       actions.Bus
	loader    *Loader
	snapshots *SnapshotCache
	processor *placeholder.Processor

	// buildMu single-flights snapshot construction per process; concurrent
	// events for a cold tenant build once, not N times.
	buildMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshotTTL bounds snapshot lifetime; expired snapshots are rebuilt on
// the next event. Zero keeps snapshots until an explicit reload.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.snapshots = NewSnapshotCache(ttl) }
}

// WithProcessor replaces the default placeholder processor, e.g. to lower
// the nesting bound.
func WithProcessor(p *placeholder.Processor) Option {
	return func(e *Engine) { e.processor = p }
}

// New creates an engine over a repository and an action bus.
func New(repo repository.Repository, bus actions.Bus, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		bus:       bus,
		loader:    NewLoader(repo),
		snapshots: NewSnapshotCache(0),
		processor: placeholder.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the tenant's current snapshot, building it on first use
// or after expiry.
func (e *Engine) Snapshot(ctx context.Context, tenantID int64) (*Snapshot, error) {
	if snap := e.snapshots.Get(tenantID); snap != nil {
		return snap, nil
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	if snap := e.snapshots.Get(tenantID); snap != nil {
		return snap, nil
	}

	snap, err := e.loader.Build(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	e.snapshots.Set(tenantID, snap)
	return snap, nil
}

// ReloadTenant rebuilds a tenant's snapshot and swaps it in atomically.
// In-flight executions keep the snapshot they started with.
func (e *Engine) ReloadTenant(ctx context.Context, tenantID int64) error {
	snap, err := e.loader.Build(ctx, tenantID)
	if err != nil {
		return err
	}
	e.snapshots.Set(tenantID, snap)
	return nil
}

// InvalidateTenant drops a tenant's snapshot; the next event rebuilds it.
func (e *Engine) InvalidateTenant(tenantID int64) {
	e.snapshots.Delete(tenantID)
}

// ProcessEvent matches an event against the tenant's triggers and executes
// every matched scenario in order. A "stop" outcome suppresses the remaining
// matches; "break", "abort" and "error" only end their own scenario.
func (e *Engine) ProcessEvent(ctx context.Context, event map[string]any) (bool, error) {
	tenantID, err := ExtractTenantID(event)
	if err != nil {
		return false, err
	}

	snap, err := e.Snapshot(ctx, tenantID)
	if err != nil {
		return false, err
	}

	ids := FindScenarios(event, snap)
	slog.Debug("Matched scenarios for event", "tenant_id", tenantID, "matched", len(ids))

	for _, id := range ids {
		outcome, _ := e.executeScenarioID(ctx, id, event, snap)
		switch outcome {
		case models.ScenarioStop:
			slog.Debug("Scenario requested stop, suppressing remaining matches",
				"tenant_id", tenantID, "scenario_id", id)
			return true, nil
		case models.ScenarioError:
			slog.Error("Scenario execution failed", "tenant_id", tenantID, "scenario_id", id)
		}
	}
	return true, nil
}

// ExecuteByName runs a single scenario by name, outside trigger matching.
// The scheduler and the execute_scenario action come through here. When the
// event already carries a snapshot reference the same snapshot is reused,
// keeping nested executions consistent with their parent.
func (e *Engine) ExecuteByName(ctx context.Context, tenantID int64, name string, event map[string]any) (string, map[string]any) {
	snap, ok := event[models.KeyScenarioMeta].(*Snapshot)
	if !ok || snap == nil || snap.TenantID != tenantID {
		var err error
		snap, err = e.Snapshot(ctx, tenantID)
		if err != nil {
			slog.Error("Cannot build snapshot for scenario run",
				"tenant_id", tenantID, "scenario", name, "error", err)
			return models.ScenarioError, nil
		}
	}
	return e.runByName(ctx, name, event, snap)
}
