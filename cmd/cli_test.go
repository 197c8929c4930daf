package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionPrintsBuildVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestStatesAddListRemove(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home,
		"states", "add", "Lunch",
		"--chime",
		"--auto-response", "yes",
		"--delay", "5s",
		"--priority", "75",
		"--hours", "12:00-13:00",
		"--days", "mon,tue,wed,thu,fri",
		"--description", "At lunch",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "saved Lunch (priority 75)")

	_, _, err = executeCLI(t, home,
		"states", "add", "Gym",
		"--auto-response", "no",
		"--delay", "2s",
		"--when", "user_presence=false",
		"--when", "system_load>=0.8",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, ".chimenet", "states.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Lunch")
	assert.Contains(t, string(data), "Gym")

	stdout, _, err = executeCLI(t, home, "states", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Lunch (priority 75), chimes, auto Positive after 5s, hours 12:00-13:00 - At lunch")
	assert.Contains(t, stdout, "Gym (priority 0), silent, auto Negative after 2s, if user_presence=false, if system_load>=0.8")

	stdout, _, err = executeCLI(t, home, "states", "remove", "Lunch")
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed Lunch")

	stdout, _, err = executeCLI(t, home, "states", "list")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Lunch")
	assert.Contains(t, stdout, "Gym")

	_, _, err = executeCLI(t, home, "states", "remove", "Lunch")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCustomStateNotFound)
}

func TestStatesListEmpty(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "states", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no custom states in "+filepath.Join(home, ".chimenet", "states.toml"))
}

func TestStatesAddRejectsStandardModeName(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "states", "add", "Grinding")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCustomState)
}

func TestStatesPathFromEnvironment(t *testing.T) {
	home := t.TempDir()
	statesPath := filepath.Join(t.TempDir(), "team-states.toml")
	t.Setenv("CHIMENET_STATES_PATH", statesPath)

	_, _, err := executeCLI(t, home, "states", "add", "Standup", "--chime")
	require.NoError(t, err)

	_, err = os.Stat(statesPath)
	require.NoError(t, err)
}

func TestRingOverMemoryTransportIsJournaled(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")

	stdout, _, err := executeCLI(t, home, "--user", "bob", "ring", "alice/desk", "--notes", "C4,E4", "--duration", "250ms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rang alice/desk (request ")

	stdout, _, err = executeCLI(t, home, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "EVENT")
	assert.Contains(t, stdout, "sent")
	assert.Contains(t, stdout, "alice/desk")

	stdout, _, err = executeCLI(t, home, "history", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, `"Event": "sent"`)
}

func TestRingWaitWithoutAnswerFails(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")

	_, _, err := executeCLI(t, home, "ring", "alice/desk", "--wait", "50ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice/desk did not answer within 50ms")
}

func TestRingRejectsBadTarget(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")

	_, _, err := executeCLI(t, home, "ring", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected user/chime")
}

func TestUnknownTransportKind(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "--transport", "carrier-pigeon", "ring", "alice/desk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport kind "carrier-pigeon"`)
}

func TestHistoryEmpty(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No rings recorded yet.")
}

func TestDiscoverListsAnnouncedChimes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")

	app, err := wireApp()
	require.NoError(t, err)

	now := time.Now().UTC()
	publishRetained(t, app.bus.Publish, protocol.ChimeListTopic("alice"), protocol.ChimeList{
		User:      "alice",
		Chimes:    []protocol.ChimeInfo{protocol.NewChimeInfo(domain.ChimeInfo{ID: "desk", Name: "Desk", Notes: []string{"C4"}, CreatedAt: now})},
		Timestamp: now,
	})
	publishRetained(t, app.bus.Publish, protocol.ChimeStatusTopic("alice", "desk"), protocol.Status{
		ChimeID:  "desk",
		Online:   true,
		Mode:     protocol.NewWireMode(domain.Grinding),
		LastSeen: now,
		NodeID:   "alice-laptop",
	})

	stdout, _, err := executeRoot(t, buildRootCmd(app, nil), nil, "discover", "--json", "--wait", "200ms")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, `"ChimeID": "desk"`)
	assert.Contains(t, stdout, `"Name": "Desk"`)
	assert.Contains(t, stdout, `"NodeID": "alice-laptop"`)
}

func TestDiscoverWithNothingOnTheMesh(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")

	stdout, _, err := executeCLI(t, home, "discover", "--wait", "50ms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No chimes discovered yet.")
}

func TestNodeShellSession(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")
	t.Setenv("CHIMENET_RENDER_KIND", "silent")

	input := strings.Join([]string{
		"mode",
		"mode Grinding",
		"status",
		"condition user_presence true",
		"states",
		"pending",
		"respond yes",
		"bogus",
		"mode auto",
		"quit",
	}, "\n") + "\n"

	stdout, _, err := executeCLIWithInput(t, home, strings.NewReader(input),
		"--user", "alice", "node", "--chime-id", "desk", "--name", "Desk", "--example-states",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "chime alice/desk (Desk) ready, mode Available")
	assert.Contains(t, stdout, "mode Available\n")
	assert.Contains(t, stdout, "mode is now Grinding")
	assert.Contains(t, stdout, "(manual)")
	assert.Contains(t, stdout, "Meeting (priority 100), silent, auto Negative after 2s")
	assert.Contains(t, stdout, "no pending rings")
	assert.Contains(t, stdout, "error: nothing pending")
	assert.Contains(t, stdout, `error: unknown command "bogus"`)
	assert.Contains(t, stdout, "chime alice/desk stopped")
}

func TestNodeRejectsUnknownInitialMode(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")

	_, _, err := executeCLIWithInput(t, home, strings.NewReader(""),
		"--user", "alice", "node", "--chime-id", "desk", "--name", "Desk", "--mode", "Vacation",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCustomStateNotFound)
}

func TestSecretSetAndRemoveWithFileBackend(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_SECRETS_BACKEND", "file")

	stdout, _, err := executeCLIWithInput(t, home, strings.NewReader("hunter2\n"), "secret", "set", "mqtt/broker")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stored secret mqtt/broker")

	data, err := os.ReadFile(filepath.Join(home, ".chimenet", "secrets", "mqtt", "broker"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(data))

	app, err := wireApp()
	require.NoError(t, err)
	app.config.Set(keyTransportSecret, "mqtt/broker")
	password, err := app.transportPassword(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)

	app.config.Set(keyTransportPassword, "inline")
	password, err = app.transportPassword(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inline", password)

	stdout, _, err = executeCLI(t, home, "secret", "rm", "mqtt/broker")
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed secret mqtt/broker")

	_, err = os.Stat(filepath.Join(home, ".chimenet", "secrets", "mqtt", "broker"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSecretSetRejectsEmptyInput(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_SECRETS_BACKEND", "file")

	_, _, err := executeCLIWithInput(t, home, strings.NewReader(""), "secret", "set", "mqtt/broker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin is empty")
}

func TestMissingTransportSecretFailsDial(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHIMENET_SECRETS_BACKEND", "file")
	t.Setenv("CHIMENET_TRANSPORT_KIND", "memory")
	t.Setenv("CHIMENET_TRANSPORT_PASSWORD_SECRET", "mqtt/nowhere")

	_, _, err := executeCLI(t, home, "ring", "alice/desk")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw     string
		want    domain.Condition
		wantErr string
	}{
		{raw: "user_presence", want: domain.UserPresence(true)},
		{raw: "calendar_busy=false", want: domain.CalendarBusy(false)},
		{raw: "network_activity=on", want: domain.NetworkActivity(true)},
		{raw: "system_load>=0.75", want: domain.SystemLoadAtLeast(0.75)},
		{raw: "system_load=0.5", want: domain.SystemLoadAtLeast(0.5)},
		{raw: "time_range=22:00-06:00", want: domain.WithinTimeRange(domain.TimeRange{StartHour: 22, EndHour: 6, Days: domain.EveryDay})},
		{raw: "focus_mode=true", want: domain.CustomCondition("focus_mode", "true")},
		{raw: "user_presence=maybe", wantErr: "expected true or false"},
		{raw: "focus_mode>=2", wantErr: "only system_load takes a threshold"},
		{raw: "focus_mode", wantErr: "expected key=value"},
		{raw: "mood=grumpy", wantErr: "not a boolean or number"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseCondition(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeWindow(t *testing.T) {
	window, err := parseTimeWindow("09:30-17:00", []string{"mon,fri"})
	require.NoError(t, err)
	assert.Equal(t, domain.TimeRange{
		StartHour:   9,
		StartMinute: 30,
		EndHour:     17,
		Days:        []time.Weekday{time.Monday, time.Friday},
	}, window)

	_, err = parseTimeWindow("9-5", nil)
	require.Error(t, err)

	_, err = parseTimeWindow("09:00-17:00", []string{"someday"})
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"C4", "E4", "G4"}, splitList([]string{"C4,E4", "G4"}))
	assert.Equal(t, []string{"Am", "F"}, splitList([]string{"Am F"}))
	assert.Nil(t, splitList(nil))
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, nil, args...)
}

func executeCLIWithInput(t *testing.T, home string, in io.Reader, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	return executeRoot(t, newRootCmd(), in, args...)
}

func executeRoot(t *testing.T, root interface {
	SetOut(io.Writer)
	SetErr(io.Writer)
	SetIn(io.Reader)
	SetArgs([]string)
	Execute() error
}, in io.Reader, args ...string) (string, string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	if in != nil {
		root.SetIn(in)
	}
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func publishRetained(t *testing.T, publish func(context.Context, string, []byte, bool) error, topic string, v any) {
	t.Helper()

	payload, err := protocol.Encode(v)
	require.NoError(t, err)
	require.NoError(t, publish(context.Background(), topic, payload, true))
}

func TestWaitSpinnerViewShowsTimeLeft(t *testing.T) {
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	model := newWaitSpinnerModel("Listening for chimes...", start.Add(3*time.Second), nil)
	model.now = func() time.Time { return start }

	assert.Contains(t, model.View(), "Listening for chimes... (3s left)")

	model.now = func() time.Time { return start.Add(5 * time.Second) }
	assert.NotContains(t, model.View(), "left")

	model.done = true
	assert.Empty(t, model.View())
}
