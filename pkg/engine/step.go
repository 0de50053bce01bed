package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/botforge/scenario/pkg/models"
)

// processParams substitutes placeholders in a step's parameters against the
// in-flight event. A step whose params are not a map yields an empty map.
func (e *Engine) processParams(data map[string]any, step *models.Step) map[string]any {
	processed, ok := e.processor.Process(step.Params, data).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return processed
}

// runStep executes one scenario step: the processed parameters are merged
// over a shallow copy of the event and the result dispatched on the bus.
// The "system" block of the event always wins over step parameters, so a
// step can never impersonate another tenant.
func (e *Engine) runStep(ctx context.Context, data map[string]any, step *models.Step, params map[string]any) *models.Envelope {
	if step == nil || step.ActionName == "" {
		return models.Errorf(models.CodeValidation, "step has no action name")
	}

	actionData := make(map[string]any, len(data)+len(params))
	for k, v := range data {
		actionData[k] = v
	}
	for k, v := range params {
		actionData[k] = v
	}
	if system, ok := data[models.KeySystem]; ok {
		actionData[models.KeySystem] = system
	}

	if step.IsAsync {
		return e.dispatchAsync(ctx, step, actionData)
	}
	return e.bus.Execute(ctx, step.ActionName, actionData)
}

// dispatchAsync fires the action without waiting and returns a success
// envelope carrying the handle, keyed by the step's action id, for the cache
// merger to store under _async_action.
func (e *Engine) dispatchAsync(ctx context.Context, step *models.Step, actionData map[string]any) *models.Envelope {
	if step.ActionID == "" {
		return models.Errorf(models.CodeValidation,
			fmt.Sprintf("async step %d has no action_id", step.ID))
	}

	handle, err := e.bus.ExecuteAsync(ctx, step.ActionName, actionData)
	if err != nil {
		return models.Errorf(models.CodeNotFound,
			fmt.Sprintf("async dispatch of %s failed: %v", step.ActionName, err))
	}

	slog.Debug("Dispatched async action",
		"action", step.ActionName, "action_id", step.ActionID, "handle_id", handle.ID)
	return models.Success(map[string]any{
		models.KeyAsyncAction: map[string]any{step.ActionID: handle},
	})
}
