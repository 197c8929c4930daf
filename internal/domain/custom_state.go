package domain

import (
	"fmt"
	"strings"
	"time"
)

// CustomState is a user-defined gating state. Values are treated as immutable
// once registered; changing one means registering a replacement.
type CustomState struct {
	Name              string
	Description       string
	ShouldChime       bool
	AutoResponse      ResponseKind
	AutoResponseDelay *time.Duration
	Priority          uint8
	ActiveHours       *TimeRange
	Conditions        []Condition
}

func (s CustomState) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomState)
	}
	if _, standard := ParseStandardMode(s.Name); standard {
		return fmt.Errorf("%w: %q collides with a standard mode", ErrInvalidCustomState, s.Name)
	}
	if strings.ContainsAny(s.Name, "/+#") {
		return fmt.Errorf("%w: %q contains a topic separator", ErrInvalidCustomState, s.Name)
	}
	if s.AutoResponse != "" && !s.AutoResponse.Valid() {
		return fmt.Errorf("%w: auto response %q", ErrInvalidCustomState, s.AutoResponse)
	}
	if s.AutoResponseDelay != nil && *s.AutoResponseDelay < 0 {
		return fmt.Errorf("%w: negative auto response delay", ErrInvalidCustomState)
	}
	if s.ActiveHours != nil {
		if err := s.ActiveHours.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCustomState, err)
		}
	}
	for _, condition := range s.Conditions {
		if err := condition.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCustomState, err)
		}
	}

	return nil
}

// Eligible reports whether the state may be selected at now given the
// condition snapshot.
func (s CustomState) Eligible(now time.Time, store Conditions) bool {
	if s.ActiveHours != nil && !s.ActiveHours.Contains(now) {
		return false
	}

	return EvaluateAll(now, s.Conditions, store)
}

func (s CustomState) Mode() Mode {
	return CustomMode(s.Name)
}

// DelayPtr is a small helper for literal states.
func DelayPtr(d time.Duration) *time.Duration {
	return &d
}

// Example states shipped with the CLI.
func MeetingState() CustomState {
	return CustomState{
		Name:              "Meeting",
		Description:       "In a meeting, auto-decline after 2 seconds",
		ShouldChime:       false,
		AutoResponse:      ResponseNegative,
		AutoResponseDelay: DelayPtr(2 * time.Second),
		Priority:          100,
		ActiveHours: &TimeRange{
			StartHour: 9,
			EndHour:   17,
			Days:      Weekdays,
		},
		Conditions: []Condition{CalendarBusy(true), UserPresence(true)},
	}
}

func FocusState() CustomState {
	return CustomState{
		Name:              "Focus",
		Description:       "Focus mode, delayed response after 30 seconds",
		ShouldChime:       false,
		AutoResponseDelay: DelayPtr(30 * time.Second),
		Priority:          50,
		Conditions:        []Condition{UserPresence(true), CustomCondition("focus_mode", "true")},
	}
}

func LunchState() CustomState {
	return CustomState{
		Name:              "Lunch",
		Description:       "At lunch, chime and auto-accept after 5 seconds",
		ShouldChime:       true,
		AutoResponse:      ResponsePositive,
		AutoResponseDelay: DelayPtr(5 * time.Second),
		Priority:          75,
		ActiveHours: &TimeRange{
			StartHour: 12,
			EndHour:   13,
			Days:      Weekdays,
		},
	}
}
