package application

import (
	"time"

	"github.com/bnema/chimenet/internal/domain"
)

// MeetingBehavior declines quietly and leaves the meeting state once the user
// accepts a ring by hand.
type MeetingBehavior struct{}

func (MeetingBehavior) OnIncomingRing(domain.RingRequest, domain.CustomState) domain.BehaviorResult {
	return domain.BehaviorResult{
		AutoResponse: domain.ResponseNegative,
		Delay:        domain.DelayPtr(2 * time.Second),
	}
}

func (MeetingBehavior) OnUserResponse(kind domain.ResponseKind, _ domain.CustomState) domain.BehaviorResult {
	if kind == domain.ResponsePositive {
		return domain.BehaviorResult{ShouldChime: true, NextState: string(domain.ModeAvailable)}
	}

	return domain.BehaviorResult{}
}

func (MeetingBehavior) OnTimeout(domain.CustomState) domain.BehaviorResult {
	return domain.BehaviorResult{AutoResponse: domain.ResponseNegative}
}

// FocusBehavior holds rings silently and accepts them after the focus delay.
type FocusBehavior struct{}

func (FocusBehavior) OnIncomingRing(_ domain.RingRequest, state domain.CustomState) domain.BehaviorResult {
	delay := 30 * time.Second
	if state.AutoResponseDelay != nil {
		delay = *state.AutoResponseDelay
	}

	return domain.BehaviorResult{Delay: &delay}
}

func (FocusBehavior) OnUserResponse(domain.ResponseKind, domain.CustomState) domain.BehaviorResult {
	return domain.BehaviorResult{ShouldChime: true, NextState: string(domain.ModeChillGrinding)}
}

func (FocusBehavior) OnTimeout(domain.CustomState) domain.BehaviorResult {
	return domain.BehaviorResult{AutoResponse: domain.ResponsePositive, NextState: string(domain.ModeAvailable)}
}

// ExampleStates pairs the example custom states with their behaviors.
func ExampleStates() ([]domain.CustomState, map[string]Behavior) {
	return []domain.CustomState{domain.MeetingState(), domain.FocusState(), domain.LunchState()},
		map[string]Behavior{
			"Meeting": MeetingBehavior{},
			"Focus":   FocusBehavior{},
		}
}
