// Package actions implements the action bus: a registry of named actions
// dispatched synchronously or fire-and-forget with awaitable handles.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/botforge/scenario/pkg/models"
)

// Action is a named effect invokable with a value map. Implementations
// return a well-formed envelope even on failure.
type Action interface {
	Name() string
	Execute(ctx context.Context, data map[string]any) *models.Envelope
}

// Config describes an action's declared output, used by the cache merger
// for the _response_key rename.
type Config struct {
	OutputSchema map[string]Field
}

// Field describes one output schema field.
type Field struct {
	Type        string
	Replaceable bool
}

// Configurer is implemented by actions that declare an output schema.
type Configurer interface {
	Config() *Config
}

// Bus is the dispatch surface the engine sees.
type Bus interface {
	Execute(ctx context.Context, name string, data map[string]any) *models.Envelope
	ExecuteAsync(ctx context.Context, name string, data map[string]any) (*Handle, error)
	ActionConfig(name string) (*Config, bool)
}

// Registry is the in-process Bus implementation.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action, replacing any previous action of the same name.
func (r *Registry) Register(a Action) {
	r.mu.Lock()
	r.actions[a.Name()] = a
	r.mu.Unlock()
}

// Names returns the registered action names, mostly for startup logging.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}

func (r *Registry) lookup(name string) (Action, bool) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	return a, ok
}

// Execute dispatches an action synchronously. Unknown actions produce a
// not_found envelope; panics inside actions become INTERNAL_ERROR envelopes.
func (r *Registry) Execute(ctx context.Context, name string, data map[string]any) (env *models.Envelope) {
	action, ok := r.lookup(name)
	if !ok {
		return &models.Envelope{
			Result: models.ResultNotFound,
			Error: &models.ActionError{
				Code:    models.CodeNotFound,
				Message: fmt.Sprintf("action %q is not registered", name),
			},
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Action panicked", "action", name, "panic", rec)
			env = models.Errorf(models.CodeInternal, fmt.Sprintf("action %s panicked: %v", name, rec))
		}
	}()

	env = action.Execute(ctx, data)
	if env == nil {
		env = models.Errorf(models.CodeInternal, fmt.Sprintf("action %s returned no envelope", name))
	}
	return env
}

// ExecuteAsync dispatches fire-and-forget and returns a single-shot handle
// that resolves to the action's envelope.
func (r *Registry) ExecuteAsync(ctx context.Context, name string, data map[string]any) (*Handle, error) {
	if _, ok := r.lookup(name); !ok {
		return nil, fmt.Errorf("action %q is not registered: %w", name, models.ErrNotFound)
	}

	handle := newHandle(name)
	go func() {
		// The dispatch context may die with the originating event; the
		// action itself keeps running on a detached context.
		handle.complete(r.Execute(context.WithoutCancel(ctx), name, data))
	}()
	return handle, nil
}

// ActionConfig returns the declared output schema of an action, when the
// action provides one.
func (r *Registry) ActionConfig(name string) (*Config, bool) {
	action, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	c, ok := action.(Configurer)
	if !ok {
		return nil, false
	}
	cfg := c.Config()
	if cfg == nil {
		return nil, false
	}
	return cfg, true
}

// Func adapts a plain function into an Action.
type Func struct {
	ActionName string
	Fn         func(ctx context.Context, data map[string]any) *models.Envelope
	Schema     *Config
}

func (f *Func) Name() string { return f.ActionName }

func (f *Func) Execute(ctx context.Context, data map[string]any) *models.Envelope {
	return f.Fn(ctx, data)
}

// Config implements Configurer when a schema is attached.
func (f *Func) Config() *Config {
	return f.Schema
}
