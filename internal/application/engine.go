package application

import "github.com/bnema/chimenet/internal/domain"

// GatingEngine turns a ring and the active state into a decision. Without a
// behavior for the active custom state the fixed table applies.
type GatingEngine struct {
	registry *ModeRegistry
}

func NewGatingEngine(registry *ModeRegistry) *GatingEngine {
	return &GatingEngine{registry: registry}
}

func (e *GatingEngine) Evaluate(req domain.RingRequest, state domain.ResolvedState) domain.GateDecision {
	decision := domain.Gate(state)
	if state.Custom == nil {
		return decision
	}

	behavior, ok := e.registry.Behavior(state.Custom.Name)
	if !ok {
		return decision
	}

	result := behavior.OnIncomingRing(req, *state.Custom)
	decision = result.Decision()

	// A behavior that asks for a delay without naming a response defers
	// the answer to its timeout hook.
	if !decision.HasAutoResponse() && result.Delay != nil && *result.Delay > 0 {
		timeout := behavior.OnTimeout(*state.Custom)
		decision.AutoResponse = timeout.AutoResponse
		if decision.NextState == "" {
			decision.NextState = timeout.NextState
		}
	}
	if !decision.HasAutoResponse() {
		decision.Delay = 0
	}

	return decision
}

// UserResponded returns the state to switch to after a manual response, if
// the active state's behavior asks for one.
func (e *GatingEngine) UserResponded(kind domain.ResponseKind, state domain.ResolvedState) string {
	if state.Custom == nil {
		return ""
	}
	behavior, ok := e.registry.Behavior(state.Custom.Name)
	if !ok {
		return ""
	}

	return behavior.OnUserResponse(kind, *state.Custom).NextState
}
