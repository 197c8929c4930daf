package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	States  []stateSchema `toml:"states"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported states schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type stateSchema struct {
	Name              string            `toml:"name"`
	Description       string            `toml:"description,omitempty"`
	ShouldChime       bool              `toml:"should_chime"`
	AutoResponse      string            `toml:"auto_response,omitempty"`
	AutoResponseDelay string            `toml:"auto_response_delay,omitempty"`
	Priority          uint8             `toml:"priority"`
	ActiveHours       *timeRangeSchema  `toml:"active_hours,omitempty"`
	Conditions        []conditionSchema `toml:"conditions,omitempty"`
}

// Times are "HH:MM", days are weekday names ("monday" or "mon").
type timeRangeSchema struct {
	Start string   `toml:"start"`
	End   string   `toml:"end"`
	Days  []string `toml:"days"`
}

type conditionSchema struct {
	Kind      string           `toml:"kind"`
	Key       string           `toml:"key,omitempty"`
	Expect    bool             `toml:"expect,omitempty"`
	Threshold float64          `toml:"threshold,omitempty"`
	Value     string           `toml:"value,omitempty"`
	Range     *timeRangeSchema `toml:"range,omitempty"`
}
