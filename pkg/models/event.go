package models

// Reserved keys on the in-flight event value. The executor augments the
// incoming event with these; step parameters cannot override "system".
const (
	KeySystem            = "system"
	KeyTenantID          = "tenant_id"
	KeyBotID             = "bot_id"
	KeyCache             = "_cache"
	KeyAsyncAction       = "_async_action"
	KeyScenarioMeta      = "_scenario_metadata"
	KeyScenarioChain     = "scenario_chain"
	KeyLastResult        = "last_result"
	KeyLastError         = "last_error"
	KeyConfig            = "_config"
	KeyScheduledAt       = "scheduled_at"
	KeyScheduledScenario = "scheduled_scenario_id"
)

// Reserved step-parameter keys interpreted by the engine rather than passed
// through to actions.
const (
	ParamNamespace   = "_namespace"
	ParamResponseKey = "_response_key"
	ParamActionID    = "action_id"
	ParamTimeout     = "timeout"
)

// KeyScenarioResult inside response_data lets an action propagate scenario
// control flow ("stop" or "abort") the way a transition of that name would.
const KeyScenarioResult = "scenario_result"
