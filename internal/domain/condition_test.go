package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want ConditionValue
	}{
		{raw: "true", want: BoolValue(true)},
		{raw: " Off ", want: BoolValue(false)},
		{raw: "0.75", want: NumberValue(0.75)},
		{raw: "3", want: NumberValue(3)},
	}

	for _, tt := range tests {
		got, err := ParseConditionValue(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseConditionValue("maybe")
	assert.Error(t, err)
}

func TestConditionEvaluate(t *testing.T) {
	t.Parallel()

	now := at(19, 10, 0)
	store := Conditions{
		"user_presence": BoolValue(true),
		"calendar_busy": BoolValue(false),
		"system_load":   NumberValue(0.8),
		"room":          NumberValue(4),
		"headphones":    BoolValue(true),
	}

	tests := []struct {
		name      string
		condition Condition
		want      bool
	}{
		{name: "presence matches", condition: UserPresence(true), want: true},
		{name: "presence mismatch", condition: UserPresence(false), want: false},
		{name: "calendar free", condition: CalendarBusy(false), want: true},
		{name: "missing key is false", condition: NetworkActivity(false), want: false},
		{name: "load over threshold", condition: SystemLoadAtLeast(0.5), want: true},
		{name: "load at threshold", condition: SystemLoadAtLeast(0.8), want: true},
		{name: "load under threshold", condition: SystemLoadAtLeast(0.9), want: false},
		{name: "time range inside", condition: WithinTimeRange(TimeRange{StartHour: 9, EndHour: 12, Days: Weekdays}), want: true},
		{name: "time range outside", condition: WithinTimeRange(TimeRange{StartHour: 13, EndHour: 14, Days: Weekdays}), want: false},
		{name: "custom numeric", condition: CustomCondition("room", "4"), want: true},
		{name: "custom bool", condition: CustomCondition("headphones", "yes"), want: true},
		{name: "custom type mismatch", condition: CustomCondition("headphones", "1"), want: false},
		{name: "custom missing", condition: CustomCondition("door", "true"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.condition.Evaluate(now, store))
		})
	}
}

func TestEvaluateAllEmptyIsTrue(t *testing.T) {
	t.Parallel()

	assert.True(t, EvaluateAll(at(19, 10, 0), nil, nil))
	assert.False(t, EvaluateAll(at(19, 10, 0), []Condition{UserPresence(true)}, nil))
}

func TestConditionValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, UserPresence(true).Validate())
	assert.Error(t, Condition{Kind: ConditionTimeRange}.Validate())
	assert.Error(t, CustomCondition("", "1").Validate())
	assert.Error(t, CustomCondition("k", "nope").Validate())
	assert.Error(t, Condition{Kind: "weather"}.Validate())
}

func TestConditionsCloneIsIndependent(t *testing.T) {
	t.Parallel()

	original := Conditions{"a": BoolValue(true)}
	clone := original.Clone()
	clone["a"] = BoolValue(false)

	assert.True(t, original["a"].Bool)
	assert.NotNil(t, Conditions(nil).Clone())
}
