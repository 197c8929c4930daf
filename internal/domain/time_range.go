package domain

import (
	"fmt"
	"slices"
	"time"
)

const minutesPerDay = 24 * 60

// TimeRange is a daily window in local time restricted to a set of weekdays.
// A window whose start is after its end wraps midnight. Start equal to end
// covers the whole day.
type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
	Days        []time.Weekday
}

// Weekdays is Monday through Friday.
var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// EveryDay is Sunday through Saturday.
var EveryDay = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}

func (r TimeRange) Validate() error {
	if r.StartHour < 0 || r.StartHour > 23 || r.EndHour < 0 || r.EndHour > 23 {
		return fmt.Errorf("time range hour out of range: %02d:%02d-%02d:%02d", r.StartHour, r.StartMinute, r.EndHour, r.EndMinute)
	}
	if r.StartMinute < 0 || r.StartMinute > 59 || r.EndMinute < 0 || r.EndMinute > 59 {
		return fmt.Errorf("time range minute out of range: %02d:%02d-%02d:%02d", r.StartHour, r.StartMinute, r.EndHour, r.EndMinute)
	}
	for _, day := range r.Days {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("time range weekday out of range: %d", day)
		}
	}

	return nil
}

func (r TimeRange) IsOvernight() bool {
	return r.start() > r.end()
}

// Contains reports whether now, taken in its own location, falls inside the
// window. The weekday checked is always now's weekday, including the early
// morning part of an overnight window.
func (r TimeRange) Contains(now time.Time) bool {
	if !slices.Contains(r.Days, now.Weekday()) {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	start, end := r.start(), r.end()

	switch {
	case start == end:
		return true
	case start < end:
		return minute >= start && minute < end
	default:
		return minute >= start || minute < end
	}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.StartHour, r.StartMinute, r.EndHour, r.EndMinute)
}

func (r TimeRange) start() int {
	return (r.StartHour*60 + r.StartMinute) % minutesPerDay
}

func (r TimeRange) end() int {
	return (r.EndHour*60 + r.EndMinute) % minutesPerDay
}
