package status

import (
	"strings"
	"testing"
	"time"

	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChimesGroupsByUser(t *testing.T) {
	now := time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)

	output, err := RenderChimes([]domain.RemoteChimeRecord{
		{
			User:     "carol",
			ChimeID:  "porch",
			Name:     "Porch",
			Mode:     domain.DoNotDisturb,
			Online:   false,
			LastSeen: now.Add(-2 * time.Hour),
		},
		{
			User:     "bob",
			ChimeID:  "desk",
			Name:     "Desk",
			Notes:    []string{"C4", "E4"},
			Chords:   []string{"Am"},
			Mode:     domain.CustomMode("Lunch"),
			Online:   true,
			LastSeen: now.Add(-3 * time.Minute),
		},
	}, RenderOptions{Now: now, StaleAfter: 5 * time.Minute})

	require.NoError(t, err)
	assert.Contains(t, output, "users: 2  chimes: 2")
	assert.Contains(t, output, "Desk (desk)")
	assert.Contains(t, output, "Lunch")
	assert.Contains(t, output, "seen 3 minutes ago")
	assert.Contains(t, output, "♪ C4 E4")
	assert.Contains(t, output, "♫ Am")
	assert.Contains(t, output, "seen 2 hours ago (09:00)")
	assert.Contains(t, output, "DoNotDisturb")
	assert.Less(t, strings.Index(output, "bob"), strings.Index(output, "carol"))
}

func TestRenderChimesEmpty(t *testing.T) {
	output, err := RenderChimes(nil, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "users: 0  chimes: 0")
	assert.Contains(t, output, "No chimes discovered yet.")
}

func TestRenderChimesMarksStaleRecord(t *testing.T) {
	now := time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)

	output, err := RenderChimes([]domain.RemoteChimeRecord{
		{User: "bob", ChimeID: "desk", Online: true, Mode: domain.Available, LastSeen: now.Add(-6 * time.Minute)},
		{User: "bob", ChimeID: "kitchen", Online: true, Mode: domain.Available, LastSeen: now.Add(-10 * time.Second)},
	}, RenderOptions{Now: now, StaleAfter: 5 * time.Minute})

	require.NoError(t, err)
	assert.Contains(t, output, "[stale]")
	assert.Contains(t, output, "desk (desk)")
	assert.Contains(t, output, "seen just now")
}

func TestRenderNode(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	deadline := now.Add(4 * time.Second)
	lunch := domain.LunchState()

	output, err := RenderNode(application.NodeSnapshot{
		User:       "alice",
		NodeID:     "alice-node",
		Chime:      domain.ChimeInfo{ID: "desk", Name: "Desk chime"},
		State:      domain.ResolvedState{Mode: lunch.Mode(), Custom: &lunch},
		Fallback:   domain.Available,
		Conditions: domain.Conditions{"user_presence": domain.BoolValue(true), "system_load": domain.NumberValue(0.5)},
		States:     []domain.CustomState{domain.MeetingState(), lunch},
		Pending: []domain.RingSession{{
			RequestID:    "req-1",
			FromNode:     "bob-node",
			FromUser:     "bob",
			Deadline:     &deadline,
			AutoResponse: domain.ResponsePositive,
			Status:       domain.SessionPending,
		}},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "alice/desk")
	assert.Contains(t, output, "node: alice-node")
	assert.Contains(t, output, "Lunch")
	assert.Contains(t, output, "(auto, fallback Available)")
	assert.Contains(t, output, "system_load = 0.5")
	assert.Contains(t, output, "user_presence = true")
	assert.Contains(t, output, "> Lunch (priority 75)")
	assert.Contains(t, output, "Meeting (priority 100)")
	assert.Contains(t, output, "pending rings: 1")
	assert.Contains(t, output, "req-1 from bob@bob-node, auto Positive in 4 seconds")
}

func TestRenderNodeManualOverride(t *testing.T) {
	override := domain.DoNotDisturb

	output, err := RenderNode(application.NodeSnapshot{
		User:     "alice",
		NodeID:   "alice-node",
		Chime:    domain.ChimeInfo{ID: "desk"},
		State:    domain.ResolvedState{Mode: domain.DoNotDisturb},
		Override: &override,
		Fallback: domain.DoNotDisturb,
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "(manual)")
	assert.Contains(t, output, "none set")
	assert.Contains(t, output, "pending rings: 0")
}
