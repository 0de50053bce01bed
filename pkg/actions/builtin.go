package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/value"
)

// ScenarioRunner executes a scenario by name for a tenant. The engine facade
// satisfies this; injecting the function keeps this package free of an
// engine dependency.
type ScenarioRunner func(ctx context.Context, tenantID int64, name string, event map[string]any) (string, map[string]any)

// Built-in action names.
const (
	WaitForAction   = "wait_for_action"
	Log             = "log"
	SetCache        = "set_cache"
	ExecuteScenario = "execute_scenario"
)

// RegisterBuiltins installs the actions the executor itself depends on.
func RegisterBuiltins(r *Registry, run ScenarioRunner) {
	r.Register(&Func{ActionName: WaitForAction, Fn: waitForAction})
	r.Register(&Func{ActionName: Log, Fn: logAction})
	r.Register(&Func{
		ActionName: SetCache,
		Fn:         setCache,
		Schema: &Config{OutputSchema: map[string]Field{
			"value": {Type: "any", Replaceable: true},
		}},
	})
	if run != nil {
		r.Register(&Func{ActionName: ExecuteScenario, Fn: executeScenario(run)})
	}
}

// waitForAction blocks on the awaitable handle registered under action_id
// and returns its envelope. An optional numeric "timeout" parameter (in
// seconds) bounds the wait without cancelling the underlying action.
func waitForAction(ctx context.Context, data map[string]any) *models.Envelope {
	actionID, _ := data[models.ParamActionID].(string)
	if actionID == "" {
		return models.Errorf(models.CodeValidation, "wait_for_action requires action_id")
	}

	handles, _ := data[models.KeyAsyncAction].(map[string]any)
	raw, ok := handles[actionID]
	if !ok {
		return &models.Envelope{
			Result: models.ResultNotFound,
			Error: &models.ActionError{
				Code:    models.CodeNotFound,
				Message: fmt.Sprintf("no async action registered under %q", actionID),
			},
		}
	}
	handle, ok := raw.(*Handle)
	if !ok {
		return models.Errorf(models.CodeInvalidState,
			fmt.Sprintf("entry %q is not an awaitable handle", actionID))
	}

	var timeout time.Duration
	if secs, ok := value.AsFloat(data[models.ParamTimeout]); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	return handle.Wait(ctx, timeout)
}

// executeScenario runs another scenario in-line and surfaces its outcome
// through response_data.scenario_result so the executor can propagate stop
// and abort.
func executeScenario(run ScenarioRunner) func(ctx context.Context, data map[string]any) *models.Envelope {
	return func(ctx context.Context, data map[string]any) *models.Envelope {
		name, _ := data["scenario_name"].(string)
		if name == "" {
			return models.Errorf(models.CodeValidation, "execute_scenario requires scenario_name")
		}
		tenantID, ok := value.AsFloat(data[models.KeyTenantID])
		if !ok {
			return models.Errorf(models.CodeValidation, "execute_scenario requires tenant_id on the event")
		}

		result, cache := run(ctx, int64(tenantID), name, data)
		response := map[string]any{
			"scenario_name":  name,
			"scenario_cache": cache,
		}
		if result == models.ScenarioStop || result == models.ScenarioAbort {
			response[models.KeyScenarioResult] = result
		}
		if result == models.ScenarioError {
			return &models.Envelope{
				Result:       models.ResultError,
				ResponseData: response,
				Error: &models.ActionError{
					Code:    models.CodeInternal,
					Message: fmt.Sprintf("scenario %q failed", name),
				},
			}
		}
		return models.Success(response)
	}
}

// setCache echoes its "value" parameter so the merger stores it in _cache,
// typically renamed via _response_key.
func setCache(_ context.Context, data map[string]any) *models.Envelope {
	return models.Success(map[string]any{"value": data["value"]})
}

// logAction writes a structured log line from a scenario.
func logAction(_ context.Context, data map[string]any) *models.Envelope {
	slog.Info("Scenario log action",
		"message", value.Stringify(data["message"]),
		"tenant_id", data[models.KeyTenantID])
	return models.Success(nil)
}
