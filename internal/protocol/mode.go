package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/chimenet/internal/domain"
)

// WireMode encodes standard modes as bare strings and custom modes as
// {"Custom":"name"}.
type WireMode struct {
	domain.Mode
}

func NewWireMode(mode domain.Mode) WireMode {
	return WireMode{Mode: mode}
}

func (m WireMode) MarshalJSON() ([]byte, error) {
	switch {
	case m.IsCustom():
		return json.Marshal(map[string]string{"Custom": m.Custom})
	case m.IsStandard():
		return json.Marshal(string(m.Kind))
	default:
		return nil, fmt.Errorf("%w: cannot encode mode %q", domain.ErrInvalidMode, m.Kind)
	}
}

func (m *WireMode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		switch kind := domain.ModeKind(name); kind {
		case domain.ModeDoNotDisturb, domain.ModeAvailable, domain.ModeChillGrinding, domain.ModeGrinding:
			m.Mode = domain.Mode{Kind: kind}
			return nil
		default:
			return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidMode, name)
		}
	}

	var custom map[string]string
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidMode, err)
	}
	name, ok := custom["Custom"]
	if !ok || len(custom) != 1 || name == "" {
		return fmt.Errorf("%w: expected {\"Custom\":name}", domain.ErrInvalidMode)
	}
	m.Mode = domain.CustomMode(name)

	return nil
}

type TimeRange struct {
	StartHour   int   `json:"start_hour"`
	StartMinute int   `json:"start_minute"`
	EndHour     int   `json:"end_hour"`
	EndMinute   int   `json:"end_minute"`
	DaysOfWeek  []int `json:"days_of_week"`
}

func NewTimeRange(r domain.TimeRange) TimeRange {
	days := make([]int, 0, len(r.Days))
	for _, day := range r.Days {
		days = append(days, int(day))
	}

	return TimeRange{
		StartHour:   r.StartHour,
		StartMinute: r.StartMinute,
		EndHour:     r.EndHour,
		EndMinute:   r.EndMinute,
		DaysOfWeek:  days,
	}
}

func (r TimeRange) Domain() domain.TimeRange {
	days := make([]time.Weekday, 0, len(r.DaysOfWeek))
	for _, day := range r.DaysOfWeek {
		days = append(days, time.Weekday(day))
	}

	return domain.TimeRange{
		StartHour:   r.StartHour,
		StartMinute: r.StartMinute,
		EndHour:     r.EndHour,
		EndMinute:   r.EndMinute,
		Days:        days,
	}
}

// Condition uses the externally tagged form: {"UserPresence":true},
// {"SystemLoad":0.5}, {"TimeRange":{...}}, {"Custom":["key","value"]}.
type Condition struct {
	domain.Condition
}

var conditionTags = map[domain.ConditionKind]string{
	domain.ConditionUserPresence:    "UserPresence",
	domain.ConditionCalendarBusy:    "CalendarBusy",
	domain.ConditionNetworkActivity: "NetworkActivity",
	domain.ConditionSystemLoad:      "SystemLoad",
	domain.ConditionTimeRange:       "TimeRange",
	domain.ConditionCustom:          "Custom",
}

func (c Condition) MarshalJSON() ([]byte, error) {
	tag, ok := conditionTags[c.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown condition kind %q", c.Kind)
	}

	var value any
	switch c.Kind {
	case domain.ConditionSystemLoad:
		value = c.Threshold
	case domain.ConditionTimeRange:
		if c.Range == nil {
			return nil, fmt.Errorf("time_range condition without range")
		}
		value = NewTimeRange(*c.Range)
	case domain.ConditionCustom:
		value = []string{c.Key, c.Value}
	default:
		value = c.Expect
	}

	return json.Marshal(map[string]any{tag: value})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("condition must have exactly one tag")
	}

	for tag, raw := range tagged {
		switch tag {
		case "UserPresence", "CalendarBusy", "NetworkActivity":
			var expect bool
			if err := json.Unmarshal(raw, &expect); err != nil {
				return fmt.Errorf("decode %s condition: %w", tag, err)
			}
			c.Condition = domain.Condition{Kind: kindForTag(tag), Expect: expect}
		case "SystemLoad":
			var threshold float64
			if err := json.Unmarshal(raw, &threshold); err != nil {
				return fmt.Errorf("decode SystemLoad condition: %w", err)
			}
			c.Condition = domain.SystemLoadAtLeast(threshold)
		case "TimeRange":
			var r TimeRange
			if err := json.Unmarshal(raw, &r); err != nil {
				return fmt.Errorf("decode TimeRange condition: %w", err)
			}
			c.Condition = domain.WithinTimeRange(r.Domain())
		case "Custom":
			var pair []string
			if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("decode Custom condition: expected [key, value]")
			}
			c.Condition = domain.CustomCondition(pair[0], pair[1])
		default:
			return fmt.Errorf("unknown condition %q", tag)
		}
	}

	return nil
}

func kindForTag(tag string) domain.ConditionKind {
	for kind, candidate := range conditionTags {
		if candidate == tag {
			return kind
		}
	}

	return ""
}

// CustomState is the wire form of a custom state attached to mode updates.
type CustomState struct {
	Name              string      `json:"name"`
	ShouldChime       bool        `json:"should_chime"`
	AutoResponse      *string     `json:"auto_response"`
	AutoResponseDelay *uint64     `json:"auto_response_delay"`
	Description       *string     `json:"description"`
	Priority          *uint8      `json:"priority"`
	ActiveHours       *TimeRange  `json:"active_hours"`
	Conditions        []Condition `json:"conditions"`
}

func NewCustomState(s domain.CustomState) CustomState {
	wire := CustomState{
		Name:        s.Name,
		ShouldChime: s.ShouldChime,
		Conditions:  make([]Condition, 0, len(s.Conditions)),
	}
	if s.AutoResponse != "" {
		response := string(s.AutoResponse)
		wire.AutoResponse = &response
	}
	if s.AutoResponseDelay != nil {
		millis := uint64(s.AutoResponseDelay.Milliseconds())
		wire.AutoResponseDelay = &millis
	}
	if s.Description != "" {
		description := s.Description
		wire.Description = &description
	}
	priority := s.Priority
	wire.Priority = &priority
	if s.ActiveHours != nil {
		hours := NewTimeRange(*s.ActiveHours)
		wire.ActiveHours = &hours
	}
	for _, condition := range s.Conditions {
		wire.Conditions = append(wire.Conditions, Condition{Condition: condition})
	}

	return wire
}

func (s CustomState) Domain() (domain.CustomState, error) {
	state := domain.CustomState{
		Name:        s.Name,
		ShouldChime: s.ShouldChime,
	}
	if s.AutoResponse != nil {
		kind := domain.ResponseKind(*s.AutoResponse)
		if !kind.Valid() {
			return domain.CustomState{}, fmt.Errorf("%w: auto response %q", domain.ErrInvalidCustomState, *s.AutoResponse)
		}
		state.AutoResponse = kind
	}
	if s.AutoResponseDelay != nil {
		state.AutoResponseDelay = domain.DelayPtr(time.Duration(*s.AutoResponseDelay) * time.Millisecond)
	}
	if s.Description != nil {
		state.Description = *s.Description
	}
	if s.Priority != nil {
		state.Priority = *s.Priority
	}
	if s.ActiveHours != nil {
		hours := s.ActiveHours.Domain()
		state.ActiveHours = &hours
	}
	for _, condition := range s.Conditions {
		state.Conditions = append(state.Conditions, condition.Condition)
	}

	return state, state.Validate()
}
