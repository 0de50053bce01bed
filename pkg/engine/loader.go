package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/botforge/scenario/pkg/condition"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/repository"
)

// Loader builds per-tenant snapshots from persisted entities.
type Loader struct {
	repo repository.Repository
}

// NewLoader creates a snapshot loader over a repository.
func NewLoader(repo repository.Repository) *Loader {
	return &Loader{repo: repo}
}

// Build reads a tenant's scenarios, triggers, steps and transitions and
// constructs a snapshot. A trigger that fails to compile, or a step or
// transition that fails to load, is logged and skipped; the snapshot stays
// usable for everything else.
func (l *Loader) Build(ctx context.Context, tenantID int64) (*Snapshot, error) {
	scenarios, err := l.repo.GetScenariosByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load scenarios for tenant %d: %w", tenantID, err)
	}

	snap := &Snapshot{
		TenantID:      tenantID,
		BuiltAt:       time.Now(),
		Tree:          condition.NewTree(),
		ScenarioIndex: make(map[int64]*models.Scenario, len(scenarios)),
		NameIndex:     make(map[string]int64, len(scenarios)),
	}

	for _, scenario := range scenarios {
		if err := l.loadScenario(ctx, snap, scenario); err != nil {
			slog.Error("Failed to load scenario, skipping",
				"tenant_id", tenantID, "scenario_id", scenario.ID, "error", err)
		}
	}

	slog.Info("Built tenant snapshot",
		"tenant_id", tenantID,
		"scenarios", len(snap.ScenarioIndex),
		"conditions", snap.Tree.Size())
	return snap, nil
}

func (l *Loader) loadScenario(ctx context.Context, snap *Snapshot, scenario *models.Scenario) error {
	triggers, err := l.repo.GetTriggersByScenario(ctx, scenario.ID)
	if err != nil {
		return fmt.Errorf("load triggers: %w", err)
	}

	steps, err := l.repo.GetStepsByScenario(ctx, scenario.ID)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })

	for _, step := range steps {
		if len(step.Transitions) > 0 {
			continue // already assembled by the repository
		}
		transitions, err := l.repo.GetTransitionsByStep(ctx, step.ID)
		if err != nil {
			slog.Warn("Failed to load step transitions",
				"scenario_id", scenario.ID, "step_id", step.ID, "error", err)
			continue
		}
		step.Transitions = transitions
	}

	loaded := *scenario
	loaded.Triggers = triggers
	loaded.Steps = steps

	snap.ScenarioIndex[loaded.ID] = &loaded
	snap.NameIndex[loaded.Name] = loaded.ID

	for _, trigger := range triggers {
		compiled, err := condition.Compile(trigger.Condition)
		if err != nil {
			slog.Warn("Trigger condition did not compile, trigger will never match",
				"scenario_id", scenario.ID, "trigger_id", trigger.ID,
				"condition", trigger.Condition, "error", err)
			continue
		}
		snap.Tree.Add(compiled, scenario.ID)
	}
	return nil
}
