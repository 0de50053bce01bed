package engine

import (
	"fmt"
	"log/slog"

	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/value"
)

// ExtractTenantID reads system.tenant_id from an event. Events without it
// are rejected before any scenario work happens.
func ExtractTenantID(event map[string]any) (int64, error) {
	system, ok := event[models.KeySystem].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("%w: missing system block", models.ErrMissingTenant)
	}
	raw, ok := system[models.KeyTenantID]
	if !ok {
		return 0, models.ErrMissingTenant
	}
	f, ok := value.AsFloat(raw)
	if !ok {
		return 0, fmt.Errorf("%w: tenant_id %v is not numeric", models.ErrMissingTenant, raw)
	}
	return int64(f), nil
}

// FindScenarios queries the snapshot's search tree for scenario ids whose
// triggers match the event. Ids orphaned by a racing reload are dropped
// with a warning.
func FindScenarios(event map[string]any, snap *Snapshot) []int64 {
	matched := snap.Tree.Search(event)

	out := matched[:0]
	for _, id := range matched {
		if _, ok := snap.ScenarioIndex[id]; !ok {
			slog.Warn("Search tree returned unknown scenario id, dropping",
				"tenant_id", snap.TenantID, "scenario_id", id)
			continue
		}
		out = append(out, id)
	}
	return out
}
