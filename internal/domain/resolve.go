package domain

import "time"

// ResolveInput is everything resolution depends on. States must be in
// registration order.
type ResolveInput struct {
	Now        time.Time
	States     []CustomState
	Conditions Conditions
	Override   *Mode
	Fallback   Mode
}

// Resolve picks the active state. It is deterministic: the same input always
// yields the same result.
//
// A manual override wins unconditionally. Otherwise the eligible custom state
// with the highest priority is chosen, the earliest registered on ties, and
// with no eligible state the fallback standard mode applies.
func Resolve(in ResolveInput) ResolvedState {
	if in.Override != nil && !in.Override.IsZero() {
		return lookup(*in.Override, in.States)
	}

	var best *CustomState
	for i := range in.States {
		candidate := &in.States[i]
		if !candidate.Eligible(in.Now, in.Conditions) {
			continue
		}
		if best == nil || candidate.Priority > best.Priority {
			best = candidate
		}
	}

	if best != nil {
		chosen := *best
		return ResolvedState{Mode: chosen.Mode(), Custom: &chosen}
	}

	fallback := in.Fallback
	if fallback.IsZero() {
		fallback = Available
	}

	return ResolvedState{Mode: fallback}
}

func lookup(mode Mode, states []CustomState) ResolvedState {
	if !mode.IsCustom() {
		return ResolvedState{Mode: mode}
	}
	for i := range states {
		if states[i].Name == mode.Custom {
			chosen := states[i]
			return ResolvedState{Mode: mode, Custom: &chosen}
		}
	}

	return ResolvedState{Mode: mode}
}
