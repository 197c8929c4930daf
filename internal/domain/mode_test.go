package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Mode
	}{
		{raw: "DoNotDisturb", want: DoNotDisturb},
		{raw: "dnd", want: DoNotDisturb},
		{raw: "available", want: Available},
		{raw: "chill-grinding", want: ChillGrinding},
		{raw: "Grinding", want: Grinding},
		{raw: "Meeting", want: CustomMode("Meeting")},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseMode("  ")
	assert.True(t, errors.Is(err, ErrInvalidMode))
	_, err = ParseMode("a/b")
	assert.True(t, errors.Is(err, ErrInvalidMode))
}

func TestModeLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Custom(Focus)", CustomMode("Focus").String())
	assert.Equal(t, "Focus", CustomMode("Focus").Label())
	assert.Equal(t, "Grinding", Grinding.Label())
	assert.Equal(t, "unset", Mode{}.String())
	assert.True(t, Available.IsStandard())
	assert.False(t, CustomMode("x").IsStandard())
}

func TestCustomStateValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MeetingState().Validate())
	assert.NoError(t, FocusState().Validate())
	assert.NoError(t, LunchState().Validate())

	invalid := []CustomState{
		{},
		{Name: "Grinding"},
		{Name: "a#b"},
		{Name: "Bad", AutoResponse: "Maybe"},
		{Name: "Bad", AutoResponseDelay: DelayPtr(-time.Second)},
		{Name: "Bad", ActiveHours: &TimeRange{StartHour: 25}},
		{Name: "Bad", Conditions: []Condition{{Kind: "weather"}}},
	}
	for _, state := range invalid {
		assert.ErrorIs(t, state.Validate(), ErrInvalidCustomState, state.Name)
	}
}

func TestParseResponseKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseResponseKind("yes")
	require.NoError(t, err)
	assert.Equal(t, ResponsePositive, kind)

	kind, err = ParseResponseKind("Negative")
	require.NoError(t, err)
	assert.Equal(t, ResponseNegative, kind)

	_, err = ParseResponseKind("later")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestSynthesizeRequestIDIsStable(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 19, 9, 0, 0, 42, time.UTC)
	assert.Equal(t, SynthesizeRequestID("bob-node", ts), SynthesizeRequestID("bob-node", ts.In(time.FixedZone("x", 3600))))
	assert.NotEqual(t, SynthesizeRequestID("bob-node", ts), SynthesizeRequestID("bob-node", ts.Add(time.Nanosecond)))
}

func TestRemoteChimeRecordStaleness(t *testing.T) {
	t.Parallel()

	seen := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	record := RemoteChimeRecord{User: "alice", ChimeID: "desk", LastSeen: seen}

	assert.False(t, record.IsStale(seen.Add(DiscoveryStaleness), DiscoveryStaleness))
	assert.True(t, record.IsStale(seen.Add(DiscoveryStaleness+time.Second), DiscoveryStaleness))
	assert.True(t, RemoteChimeRecord{}.IsStale(seen, DiscoveryStaleness))
	assert.Equal(t, "desk", record.DisplayName())
	assert.Equal(t, "alice/desk", record.Key().String())
}
