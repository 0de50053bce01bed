package engine

import (
	"log/slog"

	"github.com/botforge/scenario/pkg/actions"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/value"
)

// mergeResponse folds a step's envelope into the in-flight event. Async
// handles move to _async_action; everything else lands under _cache keyed by
// the action name (or _namespace), after an optional _response_key rename.
func (e *Engine) mergeResponse(data map[string]any, step *models.Step, params map[string]any, env *models.Envelope) {
	if env == nil || len(env.ResponseData) == 0 {
		return
	}

	response := make(map[string]any, len(env.ResponseData))
	for k, v := range env.ResponseData {
		response[k] = v
	}

	if handles, ok := response[models.KeyAsyncAction].(map[string]any); ok {
		e.storeHandles(data, handles)
		delete(response, models.KeyAsyncAction)
	}
	if len(response) == 0 {
		return
	}

	if key, ok := params[models.ParamResponseKey].(string); ok && key != "" {
		e.renameResponseField(response, step.ActionName, key)
	}

	cache, ok := data[models.KeyCache].(map[string]any)
	if !ok {
		cache = make(map[string]any)
		data[models.KeyCache] = cache
	}
	value.DeepMerge(cache, map[string]any{e.cacheKey(data, step, params): response})
}

// storeHandles registers async handles on the event. A handle that already
// resolved is never overwritten, so its result stays reachable.
func (e *Engine) storeHandles(data map[string]any, handles map[string]any) {
	registry, ok := data[models.KeyAsyncAction].(map[string]any)
	if !ok {
		registry = make(map[string]any)
		data[models.KeyAsyncAction] = registry
	}
	for id, h := range handles {
		if existing, ok := registry[id].(*actions.Handle); ok && existing.Ready() {
			slog.Warn("Async action id already resolved, keeping existing handle", "action_id", id)
			continue
		}
		registry[id] = h
	}
}

// renameResponseField applies the _response_key rename: the action's single
// replaceable output field is re-keyed so later steps can address it by a
// caller-chosen name.
func (e *Engine) renameResponseField(response map[string]any, actionName, newKey string) {
	cfg, ok := e.bus.ActionConfig(actionName)
	if !ok {
		slog.Debug("Action declares no output schema, ignoring _response_key", "action", actionName)
		return
	}
	for field, spec := range cfg.OutputSchema {
		if !spec.Replaceable || field == newKey {
			continue
		}
		if v, ok := response[field]; ok {
			response[newKey] = v
			delete(response, field)
		}
		return
	}
}

// cacheKey picks where under _cache a step's response lands: an explicit
// _namespace wins; a wait_for_action step inherits the awaited action's name
// so the result appears where the async action itself would have put it.
func (e *Engine) cacheKey(data map[string]any, step *models.Step, params map[string]any) string {
	if ns, ok := params[models.ParamNamespace].(string); ok && ns != "" {
		return ns
	}
	if step.ActionName == actions.WaitForAction {
		if id, ok := params[models.ParamActionID].(string); ok {
			if registry, ok := data[models.KeyAsyncAction].(map[string]any); ok {
				if handle, ok := registry[id].(*actions.Handle); ok && handle.Action != "" {
					return handle.Action
				}
			}
		}
	}
	return step.ActionName
}
