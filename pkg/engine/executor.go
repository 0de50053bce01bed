package engine

import (
	"context"
	"log/slog"

	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/value"
)

// executeScenarioID resolves a scenario in the snapshot and runs it.
func (e *Engine) executeScenarioID(ctx context.Context, scenarioID int64, event map[string]any, snap *Snapshot) (string, map[string]any) {
	scenario, ok := snap.ScenarioIndex[scenarioID]
	if !ok {
		slog.Error("Scenario not in snapshot", "tenant_id", snap.TenantID, "scenario_id", scenarioID)
		return models.ScenarioError, nil
	}
	return e.executeScenario(ctx, scenario, event, snap)
}

// executeScenario runs a scenario's steps against a shallow copy of the
// event and returns the outcome together with the accumulated _cache. The
// index-based loop is deliberate: negative move_steps revisits earlier steps.
func (e *Engine) executeScenario(ctx context.Context, scenario *models.Scenario, event map[string]any, snap *Snapshot) (outcome string, cache map[string]any) {
	data := copyEvent(event)
	data[models.KeyTenantID] = snap.TenantID
	data[models.KeyScenarioMeta] = snap
	data[models.KeyScenarioChain] = appendChain(data[models.KeyScenarioChain], scenario.Name)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Scenario execution panicked",
				"tenant_id", snap.TenantID, "scenario_id", scenario.ID,
				"scenario", scenario.Name, "panic", rec)
			outcome = models.ScenarioError
			cache = eventCache(data)
		}
	}()

	steps := scenario.Steps
	i := 0
	for i < len(steps) {
		step := steps[i]

		params := e.processParams(data, step)
		env := e.runStep(ctx, data, step, params)
		if env == nil {
			env = models.Errorf(models.CodeInternal, "action returned no envelope")
		}
		e.mergeResponse(data, step, params, env)

		data[models.KeyLastResult] = env.Result
		if env.Error != nil {
			data[models.KeyLastError] = map[string]any{
				"code":    env.Error.Code,
				"message": env.Error.Message,
			}
		}

		// An action may short-circuit the scenario through its response,
		// ahead of any transition on the step.
		if sr, _ := env.ResponseData[models.KeyScenarioResult].(string); sr == models.ScenarioStop || sr == models.ScenarioAbort {
			return sr, eventCache(data)
		}

		action, val := selectTransition(env.Result, step.Transitions)
		switch action {
		case models.TransitionContinue:
			i++
		case models.TransitionStop:
			return models.ScenarioStop, eventCache(data)
		case models.TransitionBreak:
			return models.ScenarioBreak, eventCache(data)
		case models.TransitionAbort:
			return models.ScenarioAbort, eventCache(data)
		case models.TransitionJumpToScenario:
			for _, name := range scenarioNames(val) {
				res, _ := e.runByName(ctx, name, data, snap)
				if res == models.ScenarioStop || res == models.ScenarioAbort {
					return res, eventCache(data)
				}
			}
			i++
		case models.TransitionMoveSteps:
			n, ok := asInt(val)
			if !ok {
				slog.Warn("move_steps transition without numeric value, continuing",
					"scenario_id", scenario.ID, "step_id", step.ID, "value", val)
				i++
				continue
			}
			if n == 0 {
				slog.Warn("move_steps by zero revisits the same step",
					"scenario_id", scenario.ID, "step_id", step.ID)
			}
			i += n
			if i < 0 {
				i = 0
			}
			if i >= len(steps) {
				return models.ScenarioSuccess, eventCache(data)
			}
		case models.TransitionJumpToStep:
			k, ok := asInt(val)
			if !ok || k < 0 || k >= len(steps) {
				return models.ScenarioSuccess, eventCache(data)
			}
			i = k
		default:
			slog.Warn("Unknown transition action, continuing",
				"scenario_id", scenario.ID, "step_id", step.ID, "transition", action)
			i++
		}
	}
	return models.ScenarioSuccess, eventCache(data)
}

// runByName resolves a jump target through the snapshot's name index. The
// callee gets its own shallow copy of the event inside executeScenario, so
// its scenario_chain mutations stay local while _cache stays shared.
func (e *Engine) runByName(ctx context.Context, name string, data map[string]any, snap *Snapshot) (string, map[string]any) {
	id, ok := snap.NameIndex[name]
	if !ok {
		slog.Error("Jump target scenario not found",
			"tenant_id", snap.TenantID, "scenario", name)
		return models.ScenarioError, nil
	}
	return e.executeScenarioID(ctx, id, data, snap)
}

func copyEvent(event map[string]any) map[string]any {
	data := make(map[string]any, len(event)+6)
	for k, v := range event {
		data[k] = v
	}
	return data
}

func appendChain(chain any, name string) []any {
	if list, ok := chain.([]any); ok {
		return append(list, name)
	}
	return []any{name}
}

func eventCache(data map[string]any) map[string]any {
	cache, _ := data[models.KeyCache].(map[string]any)
	return cache
}

// scenarioNames normalises a jump_to_scenario value: a single name or a list
// of names, executed in order.
func scenarioNames(val any) []string {
	switch v := val.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

func asInt(val any) (int, bool) {
	f, ok := value.AsFloat(val)
	if !ok {
		return 0, false
	}
	return int(f), true
}
