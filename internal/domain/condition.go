package domain

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

type ConditionKind string

const (
	ConditionUserPresence    ConditionKind = "user_presence"
	ConditionCalendarBusy    ConditionKind = "calendar_busy"
	ConditionNetworkActivity ConditionKind = "network_activity"
	ConditionSystemLoad      ConditionKind = "system_load"
	ConditionTimeRange       ConditionKind = "time_range"
	ConditionCustom          ConditionKind = "custom"
)

// ConditionValue is a boolean or numeric fact in the condition store.
type ConditionValue struct {
	Bool     bool
	Number   float64
	IsNumber bool
}

func BoolValue(v bool) ConditionValue {
	return ConditionValue{Bool: v}
}

func NumberValue(v float64) ConditionValue {
	return ConditionValue{Number: v, IsNumber: true}
}

// ParseConditionValue reads "true"/"false" (and yes/no/on/off) as booleans and
// anything else as a number.
func ParseConditionValue(raw string) (ConditionValue, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch trimmed {
	case "true", "yes", "on":
		return BoolValue(true), nil
	case "false", "no", "off":
		return BoolValue(false), nil
	}

	number, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return ConditionValue{}, fmt.Errorf("parse condition value %q: not a boolean or number", raw)
	}

	return NumberValue(number), nil
}

func (v ConditionValue) Equal(other ConditionValue) bool {
	if v.IsNumber != other.IsNumber {
		return false
	}
	if v.IsNumber {
		return v.Number == other.Number
	}

	return v.Bool == other.Bool
}

func (v ConditionValue) String() string {
	if v.IsNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}

	return strconv.FormatBool(v.Bool)
}

// Conditions is a snapshot of the node's condition store keyed by name.
type Conditions map[string]ConditionValue

func (c Conditions) Clone() Conditions {
	if c == nil {
		return Conditions{}
	}

	return maps.Clone(c)
}

// Condition is a single predicate of a custom state. Only the fields relevant
// to Kind are read.
type Condition struct {
	Kind      ConditionKind
	Key       string
	Expect    bool
	Threshold float64
	Value     string
	Range     *TimeRange
}

func UserPresence(present bool) Condition {
	return Condition{Kind: ConditionUserPresence, Expect: present}
}

func CalendarBusy(busy bool) Condition {
	return Condition{Kind: ConditionCalendarBusy, Expect: busy}
}

func NetworkActivity(active bool) Condition {
	return Condition{Kind: ConditionNetworkActivity, Expect: active}
}

func SystemLoadAtLeast(threshold float64) Condition {
	return Condition{Kind: ConditionSystemLoad, Threshold: threshold}
}

func WithinTimeRange(r TimeRange) Condition {
	return Condition{Kind: ConditionTimeRange, Range: &r}
}

func CustomCondition(key, value string) Condition {
	return Condition{Kind: ConditionCustom, Key: key, Value: value}
}

// StoreKey is the condition store entry the predicate reads.
func (c Condition) StoreKey() string {
	if c.Kind == ConditionCustom {
		return c.Key
	}

	return string(c.Kind)
}

func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionUserPresence, ConditionCalendarBusy, ConditionNetworkActivity, ConditionSystemLoad:
		return nil
	case ConditionTimeRange:
		if c.Range == nil {
			return fmt.Errorf("time_range condition requires a range")
		}
		return c.Range.Validate()
	case ConditionCustom:
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("custom condition requires a key")
		}
		if _, err := ParseConditionValue(c.Value); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

// Evaluate is pure over the snapshot and now. A key missing from the store
// makes the predicate false.
func (c Condition) Evaluate(now time.Time, store Conditions) bool {
	switch c.Kind {
	case ConditionTimeRange:
		return c.Range != nil && c.Range.Contains(now)
	case ConditionSystemLoad:
		value, ok := store[c.StoreKey()]
		return ok && value.IsNumber && value.Number >= c.Threshold
	case ConditionUserPresence, ConditionCalendarBusy, ConditionNetworkActivity:
		value, ok := store[c.StoreKey()]
		return ok && !value.IsNumber && value.Bool == c.Expect
	case ConditionCustom:
		value, ok := store[c.Key]
		if !ok {
			return false
		}
		expected, err := ParseConditionValue(c.Value)
		if err != nil {
			return false
		}
		return value.Equal(expected)
	default:
		return false
	}
}

func (c Condition) String() string {
	switch c.Kind {
	case ConditionSystemLoad:
		return fmt.Sprintf("%s>=%s", c.Kind, strconv.FormatFloat(c.Threshold, 'f', -1, 64))
	case ConditionTimeRange:
		if c.Range == nil {
			return string(c.Kind)
		}
		return fmt.Sprintf("%s(%s)", c.Kind, c.Range)
	case ConditionCustom:
		return fmt.Sprintf("%s=%s", c.Key, c.Value)
	default:
		return fmt.Sprintf("%s=%t", c.Kind, c.Expect)
	}
}

func EvaluateAll(now time.Time, conditions []Condition, store Conditions) bool {
	for _, condition := range conditions {
		if !condition.Evaluate(now, store) {
			return false
		}
	}

	return true
}
