package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func TestTimeRangeContains(t *testing.T) {
	t.Parallel()

	office := TimeRange{StartHour: 9, EndHour: 17, Days: Weekdays}
	night := TimeRange{StartHour: 22, EndHour: 6, Days: EveryDay}
	fridayNight := TimeRange{StartHour: 22, EndHour: 6, Days: []time.Weekday{time.Friday}}
	wholeSunday := TimeRange{StartHour: 8, EndHour: 8, Days: []time.Weekday{time.Sunday}}

	tests := []struct {
		name string
		r    TimeRange
		now  time.Time
		want bool
	}{
		{name: "inside office hours", r: office, now: at(19, 10, 30), want: true},
		{name: "start is inclusive", r: office, now: at(19, 9, 0), want: true},
		{name: "end is exclusive", r: office, now: at(19, 17, 0), want: false},
		{name: "before office hours", r: office, now: at(19, 8, 59), want: false},
		{name: "weekend is outside", r: office, now: at(24, 10, 0), want: false},
		{name: "overnight late evening", r: night, now: at(19, 23, 15), want: true},
		{name: "overnight early morning", r: night, now: at(20, 5, 59), want: true},
		{name: "overnight daytime", r: night, now: at(20, 12, 0), want: false},
		{name: "overnight checks current weekday at night", r: fridayNight, now: at(23, 23, 0), want: true},
		{name: "overnight checks current weekday in the morning", r: fridayNight, now: at(24, 2, 0), want: false},
		{name: "overnight morning of the listed day", r: fridayNight, now: at(23, 2, 0), want: true},
		{name: "start equal end covers the day", r: wholeSunday, now: at(18, 3, 0), want: true},
		{name: "start equal end other day", r: wholeSunday, now: at(19, 3, 0), want: false},
		{name: "empty day set never matches", r: TimeRange{StartHour: 0, EndHour: 23, EndMinute: 59}, now: at(19, 12, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.r.Contains(tt.now))
		})
	}
}

func TestTimeRangeValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, TimeRange{StartHour: 23, StartMinute: 59, Days: EveryDay}.Validate())
	assert.Error(t, TimeRange{StartHour: 24}.Validate())
	assert.Error(t, TimeRange{EndMinute: 60}.Validate())
	assert.Error(t, TimeRange{Days: []time.Weekday{7}}.Validate())
}

func TestTimeRangeOvernight(t *testing.T) {
	t.Parallel()

	assert.True(t, TimeRange{StartHour: 22, EndHour: 6}.IsOvernight())
	assert.False(t, TimeRange{StartHour: 6, EndHour: 22}.IsOvernight())
	assert.Equal(t, "22:00-06:30", TimeRange{StartHour: 22, EndHour: 6, EndMinute: 30}.String())
}
