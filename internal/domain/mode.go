package domain

import (
	"fmt"
	"strings"
)

type ModeKind string

const (
	ModeDoNotDisturb  ModeKind = "DoNotDisturb"
	ModeAvailable     ModeKind = "Available"
	ModeChillGrinding ModeKind = "ChillGrinding"
	ModeGrinding      ModeKind = "Grinding"
	ModeCustom        ModeKind = "Custom"
)

// Mode is one of the four standard gating modes or a reference to a
// registered CustomState by name.
type Mode struct {
	Kind   ModeKind
	Custom string
}

var (
	DoNotDisturb  = Mode{Kind: ModeDoNotDisturb}
	Available     = Mode{Kind: ModeAvailable}
	ChillGrinding = Mode{Kind: ModeChillGrinding}
	Grinding      = Mode{Kind: ModeGrinding}
)

func CustomMode(name string) Mode {
	return Mode{Kind: ModeCustom, Custom: name}
}

func (m Mode) IsCustom() bool {
	return m.Kind == ModeCustom
}

func (m Mode) IsZero() bool {
	return m.Kind == ""
}

func (m Mode) IsStandard() bool {
	switch m.Kind {
	case ModeDoNotDisturb, ModeAvailable, ModeChillGrinding, ModeGrinding:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	if m.IsCustom() {
		return fmt.Sprintf("Custom(%s)", m.Custom)
	}
	if m.IsZero() {
		return "unset"
	}

	return string(m.Kind)
}

// Label is the short form shown to users: the standard mode name or the
// custom state name.
func (m Mode) Label() string {
	if m.IsCustom() {
		return m.Custom
	}

	return m.String()
}

// ParseStandardMode accepts the canonical names case-insensitively plus a
// few shell-friendly aliases.
func ParseStandardMode(raw string) (Mode, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)

	switch normalized {
	case "donotdisturb", "dnd":
		return DoNotDisturb, true
	case "available", "avail":
		return Available, true
	case "chillgrinding", "chill":
		return ChillGrinding, true
	case "grinding", "grind":
		return Grinding, true
	default:
		return Mode{}, false
	}
}

// ParseMode resolves a standard mode first and otherwise treats the input as
// a custom state name. Whether that custom state exists is checked by the
// registry, not here.
func ParseMode(raw string) (Mode, error) {
	if mode, ok := ParseStandardMode(raw); ok {
		return mode, nil
	}

	name := strings.TrimSpace(raw)
	if name == "" {
		return Mode{}, fmt.Errorf("%w: empty mode", ErrInvalidMode)
	}
	if strings.ContainsAny(name, " \t\n/+#") {
		return Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}

	return CustomMode(name), nil
}
