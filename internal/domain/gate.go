package domain

import "time"

// ChillGrindingDelay is how long ChillGrinding waits before accepting.
const ChillGrindingDelay = 10 * time.Second

// GateDecision is what a node does with an incoming ring.
type GateDecision struct {
	ShouldRender bool
	AutoResponse ResponseKind
	Delay        time.Duration
	NextState    string
}

func (d GateDecision) HasAutoResponse() bool {
	return d.AutoResponse != ""
}

// Immediate is true when the response goes out without waiting.
func (d GateDecision) Immediate() bool {
	return d.HasAutoResponse() && d.Delay <= 0
}

// Dropped rings neither render nor answer.
func (d GateDecision) Dropped() bool {
	return !d.ShouldRender && !d.HasAutoResponse()
}

// BehaviorResult is what a Behavior returns from its hooks.
type BehaviorResult struct {
	ShouldChime  bool
	AutoResponse ResponseKind
	Delay        *time.Duration
	NextState    string
}

func (r BehaviorResult) Decision() GateDecision {
	decision := GateDecision{
		ShouldRender: r.ShouldChime,
		AutoResponse: r.AutoResponse,
		NextState:    r.NextState,
	}
	if r.Delay != nil {
		decision.Delay = *r.Delay
	}

	return decision
}

// ResolvedState is the outcome of mode resolution: the mode plus, for custom
// modes, the state definition it refers to.
type ResolvedState struct {
	Mode   Mode
	Custom *CustomState
}

// Gate applies the fixed decision table. It does not look at the request
// contents; behaviors that do are applied by the engine on top of this.
func Gate(state ResolvedState) GateDecision {
	switch state.Mode.Kind {
	case ModeDoNotDisturb:
		return GateDecision{}
	case ModeChillGrinding:
		return GateDecision{ShouldRender: true, AutoResponse: ResponsePositive, Delay: ChillGrindingDelay}
	case ModeGrinding:
		return GateDecision{ShouldRender: true, AutoResponse: ResponsePositive}
	case ModeCustom:
		if state.Custom == nil {
			return GateDecision{ShouldRender: true}
		}
		return customDecision(*state.Custom)
	default:
		return GateDecision{ShouldRender: true}
	}
}

// A custom state without a delay never answers on its own.
func customDecision(s CustomState) GateDecision {
	decision := GateDecision{ShouldRender: s.ShouldChime}
	if s.AutoResponse != "" && s.AutoResponseDelay != nil {
		decision.AutoResponse = s.AutoResponse
		decision.Delay = *s.AutoResponseDelay
	}

	return decision
}
