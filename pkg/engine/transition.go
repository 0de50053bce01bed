package engine

import "github.com/botforge/scenario/pkg/models"

// matchAny in a transition's ActionResult matches every envelope result and
// takes precedence over an exact match on the same step.
const matchAny = "any"

// selectTransition picks the control-flow decision for a step outcome.
// Steps without a matching transition continue to the next step.
func selectTransition(result string, transitions []*models.Transition) (string, any) {
	var exact *models.Transition
	for _, t := range transitions {
		switch t.ActionResult {
		case matchAny:
			return t.Action, t.Value
		case result:
			if exact == nil {
				exact = t
			}
		}
	}
	if exact != nil {
		return exact.Action, exact.Value
	}
	return models.TransitionContinue, nil
}
