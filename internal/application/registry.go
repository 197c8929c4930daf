package application

import (
	"fmt"
	"slices"
	"time"

	"github.com/bnema/chimenet/internal/domain"
)

// Behavior customizes how a named custom state reacts to rings.
type Behavior interface {
	OnIncomingRing(req domain.RingRequest, state domain.CustomState) domain.BehaviorResult
	OnUserResponse(kind domain.ResponseKind, state domain.CustomState) domain.BehaviorResult
	OnTimeout(state domain.CustomState) domain.BehaviorResult
}

// ModeRegistry holds the custom states, the condition store and the manual
// override of one node. It is not safe for concurrent use; the node actor
// owns it.
type ModeRegistry struct {
	states     []domain.CustomState
	behaviors  map[string]Behavior
	conditions domain.Conditions
	override   *domain.Mode
	fallback   domain.Mode
}

func NewModeRegistry() *ModeRegistry {
	return &ModeRegistry{
		behaviors:  map[string]Behavior{},
		conditions: domain.Conditions{},
		fallback:   domain.Available,
	}
}

// Register adds a custom state. Registering an existing name replaces the
// definition in place, keeping its position for tie-breaking.
func (r *ModeRegistry) Register(state domain.CustomState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	state.Conditions = slices.Clone(state.Conditions)
	for i := range r.states {
		if r.states[i].Name == state.Name {
			r.states[i] = state
			return nil
		}
	}
	r.states = append(r.states, state)

	return nil
}

// Unregister removes a custom state and its behavior. An override pointing
// at it is cleared.
func (r *ModeRegistry) Unregister(name string) error {
	index := slices.IndexFunc(r.states, func(s domain.CustomState) bool { return s.Name == name })
	if index < 0 {
		return fmt.Errorf("%w: %s", domain.ErrCustomStateNotFound, name)
	}

	r.states = slices.Delete(r.states, index, index+1)
	delete(r.behaviors, name)
	if r.override != nil && r.override.IsCustom() && r.override.Custom == name {
		r.override = nil
	}

	return nil
}

func (r *ModeRegistry) States() []domain.CustomState {
	return slices.Clone(r.states)
}

func (r *ModeRegistry) Lookup(name string) (domain.CustomState, bool) {
	for _, state := range r.states {
		if state.Name == name {
			return state, true
		}
	}

	return domain.CustomState{}, false
}

func (r *ModeRegistry) SetBehavior(name string, behavior Behavior) {
	if behavior == nil {
		delete(r.behaviors, name)
		return
	}
	r.behaviors[name] = behavior
}

func (r *ModeRegistry) Behavior(name string) (Behavior, bool) {
	behavior, ok := r.behaviors[name]
	return behavior, ok
}

// SetMode installs a manual override. A standard mode also becomes the
// fallback used once the override is cleared.
func (r *ModeRegistry) SetMode(mode domain.Mode) error {
	if mode.IsZero() {
		return fmt.Errorf("%w: empty mode", domain.ErrInvalidMode)
	}
	if mode.IsCustom() {
		if _, ok := r.Lookup(mode.Custom); !ok {
			return fmt.Errorf("%w: %s", domain.ErrCustomStateNotFound, mode.Custom)
		}
	} else {
		r.fallback = mode
	}

	override := mode
	r.override = &override

	return nil
}

// SetFallback changes the standard mode used when nothing else applies
// without installing an override.
func (r *ModeRegistry) SetFallback(mode domain.Mode) error {
	if !mode.IsStandard() {
		return fmt.Errorf("%w: fallback must be a standard mode, got %s", domain.ErrInvalidMode, mode)
	}
	r.fallback = mode

	return nil
}

func (r *ModeRegistry) ClearOverride() {
	r.override = nil
}

func (r *ModeRegistry) Override() (domain.Mode, bool) {
	if r.override == nil {
		return domain.Mode{}, false
	}

	return *r.override, true
}

func (r *ModeRegistry) Fallback() domain.Mode {
	return r.fallback
}

func (r *ModeRegistry) SetCondition(key string, value domain.ConditionValue) {
	r.conditions[key] = value
}

func (r *ModeRegistry) ClearCondition(key string) {
	delete(r.conditions, key)
}

func (r *ModeRegistry) Conditions() domain.Conditions {
	return r.conditions.Clone()
}

func (r *ModeRegistry) Resolve(now time.Time) domain.ResolvedState {
	return domain.Resolve(domain.ResolveInput{
		Now:        now,
		States:     r.states,
		Conditions: r.conditions,
		Override:   r.override,
		Fallback:   r.fallback,
	})
}
