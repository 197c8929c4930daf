package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateTable(t *testing.T) {
	t.Parallel()

	meeting := MeetingState()
	focus := FocusState()
	lunch := LunchState()
	noDelay := CustomState{Name: "Silent", AutoResponse: ResponseNegative}

	tests := []struct {
		name  string
		state ResolvedState
		want  GateDecision
	}{
		{name: "do not disturb drops", state: ResolvedState{Mode: DoNotDisturb}, want: GateDecision{}},
		{name: "available renders and waits", state: ResolvedState{Mode: Available}, want: GateDecision{ShouldRender: true}},
		{name: "chill grinding accepts after ten seconds", state: ResolvedState{Mode: ChillGrinding}, want: GateDecision{ShouldRender: true, AutoResponse: ResponsePositive, Delay: 10 * time.Second}},
		{name: "grinding accepts at once", state: ResolvedState{Mode: Grinding}, want: GateDecision{ShouldRender: true, AutoResponse: ResponsePositive}},
		{name: "meeting declines silently", state: ResolvedState{Mode: meeting.Mode(), Custom: &meeting}, want: GateDecision{AutoResponse: ResponseNegative, Delay: 2 * time.Second}},
		{name: "focus has no auto response", state: ResolvedState{Mode: focus.Mode(), Custom: &focus}, want: GateDecision{}},
		{name: "lunch chimes then accepts", state: ResolvedState{Mode: lunch.Mode(), Custom: &lunch}, want: GateDecision{ShouldRender: true, AutoResponse: ResponsePositive, Delay: 5 * time.Second}},
		{name: "response without delay never answers", state: ResolvedState{Mode: noDelay.Mode(), Custom: &noDelay}, want: GateDecision{}},
		{name: "unknown custom behaves like available", state: ResolvedState{Mode: CustomMode("Ghost")}, want: GateDecision{ShouldRender: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Gate(tt.state))
		})
	}
}

func TestGateDecisionPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, Gate(ResolvedState{Mode: DoNotDisturb}).Dropped())
	assert.True(t, Gate(ResolvedState{Mode: Grinding}).Immediate())
	assert.False(t, Gate(ResolvedState{Mode: ChillGrinding}).Immediate())
	assert.False(t, Gate(ResolvedState{Mode: Available}).HasAutoResponse())
}

func TestBehaviorResultDecision(t *testing.T) {
	t.Parallel()

	result := BehaviorResult{ShouldChime: true, AutoResponse: ResponseNegative, Delay: DelayPtr(3 * time.Second), NextState: "Available"}
	assert.Equal(t, GateDecision{ShouldRender: true, AutoResponse: ResponseNegative, Delay: 3 * time.Second, NextState: "Available"}, result.Decision())
	assert.Equal(t, time.Duration(0), BehaviorResult{}.Decision().Delay)
}
