package application

import (
	"testing"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeRegistryReRegisterKeepsTieBreakSlot(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	require.NoError(t, registry.Register(domain.CustomState{Name: "First", Priority: 5}))
	require.NoError(t, registry.Register(domain.CustomState{Name: "Second", Priority: 5}))
	require.NoError(t, registry.Register(domain.CustomState{Name: "First", Priority: 5, Description: "updated"}))

	states := registry.States()
	require.Len(t, states, 2)
	assert.Equal(t, "First", states[0].Name)
	assert.Equal(t, "updated", states[0].Description)

	assert.Equal(t, domain.CustomMode("First"), registry.Resolve(epoch).Mode)
}

func TestModeRegistryRejectsInvalidStates(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	assert.ErrorIs(t, registry.Register(domain.CustomState{Name: ""}), domain.ErrInvalidCustomState)
	assert.ErrorIs(t, registry.Register(domain.CustomState{Name: "Grinding"}), domain.ErrInvalidCustomState)
	assert.Empty(t, registry.States())
}

func TestModeRegistrySetMode(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	assert.ErrorIs(t, registry.SetMode(domain.CustomMode("Gym")), domain.ErrCustomStateNotFound)
	assert.ErrorIs(t, registry.SetMode(domain.Mode{}), domain.ErrInvalidMode)

	require.NoError(t, registry.SetMode(domain.Grinding))
	override, ok := registry.Override()
	require.True(t, ok)
	assert.Equal(t, domain.Grinding, override)
	assert.Equal(t, domain.Grinding, registry.Fallback())

	registry.ClearOverride()
	_, ok = registry.Override()
	assert.False(t, ok)
	assert.Equal(t, domain.Grinding, registry.Resolve(epoch).Mode)
}

func TestModeRegistryOverrideBeatsEligibleStates(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	require.NoError(t, registry.Register(domain.CustomState{Name: "Always", Priority: 200}))
	assert.Equal(t, domain.CustomMode("Always"), registry.Resolve(epoch).Mode)

	require.NoError(t, registry.SetMode(domain.DoNotDisturb))
	assert.Equal(t, domain.DoNotDisturb, registry.Resolve(epoch).Mode)

	registry.ClearOverride()
	assert.Equal(t, domain.CustomMode("Always"), registry.Resolve(epoch).Mode)
}

func TestModeRegistryUnregister(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	require.NoError(t, registry.Register(domain.FocusState()))
	registry.SetBehavior("Focus", FocusBehavior{})
	require.NoError(t, registry.SetMode(domain.CustomMode("Focus")))

	require.NoError(t, registry.Unregister("Focus"))
	_, ok := registry.Override()
	assert.False(t, ok)
	_, ok = registry.Behavior("Focus")
	assert.False(t, ok)

	assert.ErrorIs(t, registry.Unregister("Focus"), domain.ErrCustomStateNotFound)
}

func TestModeRegistrySetFallbackRejectsCustom(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	assert.ErrorIs(t, registry.SetFallback(domain.CustomMode("Lunch")), domain.ErrInvalidMode)
	require.NoError(t, registry.SetFallback(domain.ChillGrinding))
	assert.Equal(t, domain.ChillGrinding, registry.Resolve(epoch).Mode)
}

func TestModeRegistryConditions(t *testing.T) {
	t.Parallel()

	registry := NewModeRegistry()
	require.NoError(t, registry.Register(domain.MeetingState()))

	// Monday 10:00, inside the meeting hours.
	now := epoch.Add(time.Hour)
	assert.Equal(t, domain.Available, registry.Resolve(now).Mode)

	registry.SetCondition("calendar_busy", domain.BoolValue(true))
	registry.SetCondition("user_presence", domain.BoolValue(true))
	assert.Equal(t, domain.CustomMode("Meeting"), registry.Resolve(now).Mode)

	conditions := registry.Conditions()
	conditions["calendar_busy"] = domain.BoolValue(false)
	assert.Equal(t, domain.CustomMode("Meeting"), registry.Resolve(now).Mode)

	registry.ClearCondition("calendar_busy")
	assert.Equal(t, domain.Available, registry.Resolve(now).Mode)
}
