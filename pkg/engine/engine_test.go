package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/scenario/pkg/actions"
	"github.com/botforge/scenario/pkg/models"
	"github.com/botforge/scenario/pkg/repository"
)

// recorder is a test action that captures the data it was invoked with.
type recorder struct {
	mu    sync.Mutex
	name  string
	calls []map[string]any
	env   *models.Envelope
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Execute(_ context.Context, data map[string]any) *models.Envelope {
	r.mu.Lock()
	r.calls = append(r.calls, data)
	r.mu.Unlock()
	if r.env != nil {
		return r.env
	}
	return models.Success(nil)
}

func (r *recorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) lastCall() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func newTestEngine(repo *repository.Memory) (*Engine, *actions.Registry) {
	reg := actions.NewRegistry()
	e := New(repo, reg)
	actions.RegisterBuiltins(reg, e.ExecuteByName)
	return e, reg
}

func pingEvent() map[string]any {
	return map[string]any{
		"system": map[string]any{"tenant_id": 1},
		"text":   "/ping",
	}
}

func TestProcessEventEqualityMatch(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "echo",
		Triggers: []*models.Trigger{
			{ID: 1, ScenarioID: 1, Condition: `$system.tenant_id == 1 and $text == "/ping"`},
		},
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "reply",
				Params: map[string]any{"text": "pong from {system.tenant_id}"}},
		},
	})

	e, reg := newTestEngine(repo)
	reply := &recorder{name: "reply", env: models.Success(map[string]any{"sent": true})}
	reg.Register(reply)

	ok, err := e.ProcessEvent(context.Background(), pingEvent())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Equal(t, 1, reply.callCount())
	call := reply.lastCall()
	assert.Equal(t, "pong from 1", call["text"])
	assert.Equal(t, map[string]any{"tenant_id": 1}, call["system"])
}

func TestProcessEventNoMatch(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "echo",
		Triggers: []*models.Trigger{
			{ID: 1, ScenarioID: 1, Condition: `$text == "/ping"`},
		},
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "reply"},
		},
	})

	e, reg := newTestEngine(repo)
	reply := &recorder{name: "reply"}
	reg.Register(reply)

	event := map[string]any{
		"system": map[string]any{"tenant_id": 1},
		"text":   "/pong",
	}
	ok, err := e.ProcessEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, reply.callCount())
}

func TestProcessEventMissingTenant(t *testing.T) {
	e, _ := newTestEngine(repository.NewMemory())
	_, err := e.ProcessEvent(context.Background(), map[string]any{"text": "/ping"})
	assert.ErrorIs(t, err, models.ErrMissingTenant)
}

func TestExecuteByNameReturnsCache(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "echo",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "reply"},
		},
	})

	e, reg := newTestEngine(repo)
	reg.Register(&recorder{name: "reply", env: models.Success(map[string]any{"sent": true})})

	result, cache := e.ExecuteByName(context.Background(), 1, "echo", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	require.Contains(t, cache, "reply")
	assert.Equal(t, map[string]any{"sent": true}, cache["reply"])
}

func TestTransitionJumpToScenario(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "onboarding",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "check_user",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: models.ResultNotFound,
						Action: models.TransitionJumpToScenario, Value: "register"},
				}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "welcome_back"},
		},
	})
	repo.AddScenario(&models.Scenario{
		ID: 2, TenantID: 1, Name: "register",
		Steps: []*models.Step{
			{ID: 3, ScenarioID: 2, StepOrder: 1, ActionName: "register_user"},
		},
	})

	e, reg := newTestEngine(repo)
	reg.Register(&recorder{name: "check_user", env: &models.Envelope{Result: models.ResultNotFound}})
	welcome := &recorder{name: "welcome_back"}
	reg.Register(welcome)
	registerUser := &recorder{name: "register_user"}
	reg.Register(registerUser)

	result, _ := e.ExecuteByName(context.Background(), 1, "onboarding", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	assert.Equal(t, 1, registerUser.callCount())
	assert.Equal(t, 1, welcome.callCount(), "caller continues at the next step after the jump")
}

func TestAsyncDispatchAndWait(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "compute",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "slow_compute",
				IsAsync: true, ActionID: "C1"},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: actions.WaitForAction,
				Params: map[string]any{"action_id": "C1", "timeout": 5}},
			{ID: 3, ScenarioID: 1, StepOrder: 3, ActionName: "use_result",
				Params: map[string]any{"v": "{_cache.slow_compute.value}"}},
		},
	})

	e, reg := newTestEngine(repo)
	reg.Register(&actions.Func{
		ActionName: "slow_compute",
		Fn: func(context.Context, map[string]any) *models.Envelope {
			time.Sleep(20 * time.Millisecond)
			return models.Success(map[string]any{"value": 42})
		},
	})
	use := &recorder{name: "use_result"}
	reg.Register(use)

	result, cache := e.ExecuteByName(context.Background(), 1, "compute", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)

	// The awaited envelope lands under the async action's own name.
	require.Contains(t, cache, "slow_compute")
	assert.Equal(t, map[string]any{"value": 42}, cache["slow_compute"])

	// Whole-placeholder substitution preserved the integer type.
	require.Equal(t, 1, use.callCount())
	assert.Equal(t, 42, use.lastCall()["v"])
}

func TestJumpToScenarioListAbort(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "main",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "noop",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "any",
						Action: models.TransitionJumpToScenario, Value: []any{"A", "B", "C"}},
				}},
		},
	})
	for i, name := range []string{"A", "B", "C"} {
		id := int64(10 + i)
		scenario := &models.Scenario{
			ID: id, TenantID: 1, Name: name,
			Steps: []*models.Step{
				{ID: id * 10, ScenarioID: id, StepOrder: 1, ActionName: "step_" + name},
			},
		}
		if name == "B" {
			scenario.Steps[0].Transitions = []*models.Transition{
				{ID: id, StepID: id * 10, ActionResult: "any", Action: models.TransitionAbort},
			}
		}
		repo.AddScenario(scenario)
	}

	e, reg := newTestEngine(repo)
	reg.Register(&recorder{name: "noop"})
	a := &recorder{name: "step_A"}
	b := &recorder{name: "step_B"}
	c := &recorder{name: "step_C"}
	reg.Register(a)
	reg.Register(b)
	reg.Register(c)

	result, _ := e.ExecuteByName(context.Background(), 1, "main", map[string]any{})
	assert.Equal(t, models.ScenarioAbort, result)
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
	assert.Zero(t, c.callCount(), "abort in B must skip C")
}

func TestStopSuppressesRemainingScenarios(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "first",
		Triggers: []*models.Trigger{{ID: 1, ScenarioID: 1, Condition: `$kind == "x"`}},
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "one",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "any", Action: models.TransitionStop},
				}},
		},
	})
	repo.AddScenario(&models.Scenario{
		ID: 2, TenantID: 1, Name: "second",
		Triggers: []*models.Trigger{{ID: 2, ScenarioID: 2, Condition: `$kind == "x"`}},
		Steps: []*models.Step{
			{ID: 2, ScenarioID: 2, StepOrder: 1, ActionName: "two"},
		},
	})

	e, reg := newTestEngine(repo)
	one := &recorder{name: "one"}
	two := &recorder{name: "two"}
	reg.Register(one)
	reg.Register(two)

	event := map[string]any{
		"system": map[string]any{"tenant_id": 1},
		"kind":   "x",
	}
	ok, err := e.ProcessEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, one.callCount())
	assert.Zero(t, two.callCount())
}

func TestBreakEndsOnlyItsScenario(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "first",
		Triggers: []*models.Trigger{{ID: 1, ScenarioID: 1, Condition: `$kind == "x"`}},
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "one",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "any", Action: models.TransitionBreak},
				}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "never"},
		},
	})
	repo.AddScenario(&models.Scenario{
		ID: 2, TenantID: 1, Name: "second",
		Triggers: []*models.Trigger{{ID: 2, ScenarioID: 2, Condition: `$kind == "x"`}},
		Steps: []*models.Step{
			{ID: 3, ScenarioID: 2, StepOrder: 1, ActionName: "two"},
		},
	})

	e, reg := newTestEngine(repo)
	never := &recorder{name: "never"}
	two := &recorder{name: "two"}
	reg.Register(&recorder{name: "one"})
	reg.Register(never)
	reg.Register(two)

	event := map[string]any{
		"system": map[string]any{"tenant_id": 1},
		"kind":   "x",
	}
	_, err := e.ProcessEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Zero(t, never.callCount())
	assert.Equal(t, 1, two.callCount())
}

func TestMoveStepsClampsAtZero(t *testing.T) {
	// gate succeeds on the first pass; when move_steps jumps far below zero
	// the index clamps to 0 and gate's second result stops the scenario.
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "loop",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "gate",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "done", Action: models.TransitionStop},
				}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "mid",
				Transitions: []*models.Transition{
					{ID: 2, StepID: 2, ActionResult: "any",
						Action: models.TransitionMoveSteps, Value: -999},
				}},
		},
	})

	e, reg := newTestEngine(repo)
	var gateCalls int
	reg.Register(&actions.Func{
		ActionName: "gate",
		Fn: func(context.Context, map[string]any) *models.Envelope {
			gateCalls++
			if gateCalls > 1 {
				return &models.Envelope{Result: "done"}
			}
			return models.Success(nil)
		},
	})
	reg.Register(&recorder{name: "mid"})

	result, _ := e.ExecuteByName(context.Background(), 1, "loop", map[string]any{})
	assert.Equal(t, models.ScenarioStop, result)
	assert.Equal(t, 2, gateCalls)
}

func TestMoveStepsPastEndSucceeds(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "skip",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "one",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "any",
						Action: models.TransitionMoveSteps, Value: 5},
				}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "never"},
		},
	})

	e, reg := newTestEngine(repo)
	never := &recorder{name: "never"}
	reg.Register(&recorder{name: "one"})
	reg.Register(never)

	result, _ := e.ExecuteByName(context.Background(), 1, "skip", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	assert.Zero(t, never.callCount())
}

func TestJumpToStepOutOfRangeSucceeds(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "three",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "one",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "any",
						Action: models.TransitionJumpToStep, Value: 999},
				}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "never"},
			{ID: 3, ScenarioID: 1, StepOrder: 3, ActionName: "never"},
		},
	})

	e, reg := newTestEngine(repo)
	never := &recorder{name: "never"}
	reg.Register(&recorder{name: "one"})
	reg.Register(never)

	result, _ := e.ExecuteByName(context.Background(), 1, "three", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	assert.Zero(t, never.callCount())
}

func TestScenarioResultEarlyExit(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "early",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "decide",
				Transitions: []*models.Transition{
					// Would continue, but scenario_result is checked first.
					{ID: 1, StepID: 1, ActionResult: "any", Action: models.TransitionContinue},
				}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "never"},
		},
	})

	e, reg := newTestEngine(repo)
	reg.Register(&recorder{name: "decide",
		env: models.Success(map[string]any{models.KeyScenarioResult: models.ScenarioStop})})
	never := &recorder{name: "never"}
	reg.Register(never)

	result, _ := e.ExecuteByName(context.Background(), 1, "early", map[string]any{})
	assert.Equal(t, models.ScenarioStop, result)
	assert.Zero(t, never.callCount())
}

func TestResponseKeyRename(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "remember",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: actions.SetCache,
				Params: map[string]any{"value": 7, "_response_key": "lucky"}},
		},
	})

	e, _ := newTestEngine(repo)
	result, cache := e.ExecuteByName(context.Background(), 1, "remember", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	require.Contains(t, cache, actions.SetCache)
	assert.Equal(t, map[string]any{"lucky": 7}, cache[actions.SetCache])
}

func TestNamespaceMerge(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "ns",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "produce",
				Params: map[string]any{"_namespace": "report"}},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "produce",
				Params: map[string]any{"_namespace": "report"}},
		},
	})

	e, reg := newTestEngine(repo)
	var n int
	reg.Register(&actions.Func{
		ActionName: "produce",
		Fn: func(context.Context, map[string]any) *models.Envelope {
			n++
			if n == 1 {
				return models.Success(map[string]any{"first": 1})
			}
			return models.Success(map[string]any{"second": 2})
		},
	})

	result, cache := e.ExecuteByName(context.Background(), 1, "ns", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	assert.Equal(t, map[string]any{"first": 1, "second": 2}, cache["report"])
}

func TestUnknownActionContinues(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "resilient",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "ghost"},
			{ID: 2, ScenarioID: 1, StepOrder: 2, ActionName: "after"},
		},
	})

	e, reg := newTestEngine(repo)
	after := &recorder{name: "after"}
	reg.Register(after)

	result, _ := e.ExecuteByName(context.Background(), 1, "resilient", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)

	require.Equal(t, 1, after.callCount())
	assert.Equal(t, models.ResultNotFound, after.lastCall()["last_result"])
}

func TestSnapshotIsolationAcrossReload(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "v1",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "noop"},
		},
	})

	e, reg := newTestEngine(repo)
	reg.Register(&recorder{name: "noop"})

	before, err := e.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	require.Contains(t, before.NameIndex, "v1")

	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "v2",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "noop"},
		},
	})
	require.NoError(t, e.ReloadTenant(context.Background(), 1))

	after, err := e.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	// The old reference is untouched; only new lookups see the reload.
	assert.Contains(t, before.NameIndex, "v1")
	assert.Contains(t, after.NameIndex, "v2")
	assert.NotContains(t, after.NameIndex, "v1")
}

func TestScenarioChainRecordsJumps(t *testing.T) {
	repo := repository.NewMemory()
	repo.AddScenario(&models.Scenario{
		ID: 1, TenantID: 1, Name: "outer",
		Steps: []*models.Step{
			{ID: 1, ScenarioID: 1, StepOrder: 1, ActionName: "noop",
				Transitions: []*models.Transition{
					{ID: 1, StepID: 1, ActionResult: "any",
						Action: models.TransitionJumpToScenario, Value: "inner"},
				}},
		},
	})
	repo.AddScenario(&models.Scenario{
		ID: 2, TenantID: 1, Name: "inner",
		Steps: []*models.Step{
			{ID: 2, ScenarioID: 2, StepOrder: 1, ActionName: "observe"},
		},
	})

	e, reg := newTestEngine(repo)
	reg.Register(&recorder{name: "noop"})
	observe := &recorder{name: "observe"}
	reg.Register(observe)

	result, _ := e.ExecuteByName(context.Background(), 1, "outer", map[string]any{})
	assert.Equal(t, models.ScenarioSuccess, result)
	require.Equal(t, 1, observe.callCount())
	assert.Equal(t, []any{"outer", "inner"}, observe.lastCall()["scenario_chain"])
}
