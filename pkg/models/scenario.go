// Package models defines the persisted entities of the scenario engine and
// the envelope exchanged with actions.
package models

import "time"

// Scenario is an ordered program of steps guarded by triggers, owned by a
// tenant. A non-empty Schedule marks it as cron-driven.
type Scenario struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Schedule    string     `json:"schedule,omitempty"`
	LastRun     *time.Time `json:"last_run,omitempty"`

	Triggers []*Trigger `json:"triggers,omitempty"`
	Steps    []*Step    `json:"steps,omitempty"`
}

// Scheduled reports whether the scenario is fired by the scheduler.
func (s *Scenario) Scheduled() bool {
	return s.Schedule != ""
}

// Trigger holds the source text of a condition selecting its scenario.
type Trigger struct {
	ID         int64  `json:"id"`
	ScenarioID int64  `json:"scenario_id"`
	Condition  string `json:"condition"`
}

// Step is a single action invocation with templated parameters and a
// transition table. ActionID keys the awaitable handle for async steps.
type Step struct {
	ID         int64          `json:"id"`
	ScenarioID int64          `json:"scenario_id"`
	StepOrder  int            `json:"step_order"`
	ActionName string         `json:"action_name"`
	Params     map[string]any `json:"params,omitempty"`
	IsAsync    bool           `json:"is_async"`
	ActionID   string         `json:"action_id,omitempty"`

	Transitions []*Transition `json:"transitions,omitempty"`
}

// Transition maps an action result to a control-flow decision.
// ActionResult "any" matches every result and wins over exact matches.
type Transition struct {
	ID           int64  `json:"id"`
	StepID       int64  `json:"step_id"`
	ActionResult string `json:"action_result"`
	Action       string `json:"transition_action"`
	Value        any    `json:"transition_value,omitempty"`
}

// Transition actions.
const (
	TransitionContinue       = "continue"
	TransitionStop           = "stop"
	TransitionBreak          = "break"
	TransitionAbort          = "abort"
	TransitionJumpToScenario = "jump_to_scenario"
	TransitionMoveSteps      = "move_steps"
	TransitionJumpToStep     = "jump_to_step"
)

// Bot identifies the chat-platform bot attached to a tenant.
type Bot struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Name     string `json:"name"`
	Platform string `json:"platform,omitempty"`
}

// Tenant is the owner of scenarios and bots. Config carries arbitrary
// tenant-level settings injected into scheduled events as _config.
type Tenant struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}
