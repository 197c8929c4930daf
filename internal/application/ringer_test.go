package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	clockadapter "github.com/bnema/chimenet/internal/adapters/clock"
	"github.com/bnema/chimenet/internal/adapters/transport/memory"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports/mocks"
	"github.com/bnema/chimenet/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseRingTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    RingTarget
		wantErr bool
	}{
		{raw: "alice/desk", want: RingTarget{User: "alice", ChimeID: "desk"}},
		{raw: " bob/porch ", want: RingTarget{User: "bob", ChimeID: "porch"}},
		{raw: "alice", wantErr: true},
		{raw: "/desk", wantErr: true},
		{raw: "alice/desk/extra", wantErr: true},
		{raw: "alice/+", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRingTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRingerRingPublishesToTargetTopic(t *testing.T) {
	t.Parallel()

	transport := mocks.NewMockTransport(t)
	var published []byte
	transport.EXPECT().
		Publish(mock.Anything, "/alice/chime/desk/ring", mock.Anything, false).
		Run(func(_ context.Context, _ string, payload []byte, _ bool) { published = payload }).
		Return(nil).
		Once()

	journal := mocks.NewMockJournal(t)
	journal.EXPECT().Append(mock.Anything, mock.MatchedBy(func(e domain.JournalEntry) bool {
		return e.Event == domain.JournalSent && e.RequestID == "req-1" && e.User == "alice"
	})).Return(nil).Once()

	ringer := NewRingerService(transport, clockadapter.NewFake(epoch), "bob", "bob-node",
		WithRequestIDs(func() string { return "req-1" }),
		WithRingerJournal(journal),
	)

	req, err := ringer.Ring(context.Background(), RingTarget{User: "alice", ChimeID: "desk"}, RingOptions{
		Notes:    []string{"C4", "G4"},
		Duration: 750 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob-node", req.FromNode)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(published, &wire))
	assert.Equal(t, "req-1", wire["request_id"])
	assert.Equal(t, "alice", wire["user"])
	assert.Equal(t, "desk", wire["chime_id"])
	assert.Equal(t, "bob-node", wire["from_node"])
	assert.Equal(t, "bob", wire["from_user"])
	assert.EqualValues(t, 750, wire["duration_ms"])
}

func TestRingerRingWrapsTransportFailure(t *testing.T) {
	t.Parallel()

	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Publish(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("not connected"))

	ringer := NewRingerService(transport, clockadapter.NewFake(epoch), "bob", "bob-node")
	_, err := ringer.Ring(context.Background(), RingTarget{User: "alice", ChimeID: "desk"}, RingOptions{})
	assert.ErrorIs(t, err, domain.ErrTransportUnavailable)
}

func TestRingerRejectsInvalidTarget(t *testing.T) {
	t.Parallel()

	ringer := NewRingerService(mocks.NewMockTransport(t), nil, "bob", "bob-node")
	_, err := ringer.Ring(context.Background(), RingTarget{User: "alice"}, RingOptions{})
	assert.Error(t, err)
}

func TestRingerRingAndWaitMatchesRequestID(t *testing.T) {
	t.Parallel()

	bus := memory.NewBus()
	clock := clockadapter.NewFake(epoch)
	ringer := NewRingerService(bus, clock, "bob", "bob-node", WithRequestIDs(func() string { return "req-2" }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rings, err := bus.Subscribe(ctx, protocol.ChimeRingTopic("alice", "desk"))
	require.NoError(t, err)

	go func() {
		msg := <-rings
		req, err := protocol.DecodeRingRequest(msg.Payload)
		if err != nil {
			return
		}
		respond := func(requestID string, kind domain.ResponseKind) {
			payload, _ := protocol.Encode(protocol.NewResponse(domain.Response{
				RequestID: requestID,
				ChimeID:   "desk",
				NodeID:    "alice-node",
				Kind:      kind,
				Timestamp: epoch,
			}))
			_ = bus.Publish(ctx, protocol.ChimeResponseTopic("alice", "desk"), payload, false)
		}
		respond("someone-else", domain.ResponsePositive)
		respond(req.RequestID, domain.ResponseNegative)
	}()

	req, response, err := ringer.RingAndWait(ctx, RingTarget{User: "alice", ChimeID: "desk"}, RingOptions{}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "req-2", req.RequestID)
	assert.Equal(t, "req-2", response.RequestID)
	assert.Equal(t, domain.ResponseNegative, response.Kind)
}

func TestRingerRingAndWaitTimesOut(t *testing.T) {
	t.Parallel()

	clock := clockadapter.NewFake(epoch)
	ringer := NewRingerService(memory.NewBus(), clock, "bob", "bob-node")

	errs := make(chan error, 1)
	go func() {
		_, _, err := ringer.RingAndWait(context.Background(), RingTarget{User: "alice", ChimeID: "desk"}, RingOptions{}, 30*time.Second)
		errs <- err
	}()

	clock.WaitForTimers(1)
	clock.Advance(29 * time.Second)
	select {
	case err := <-errs:
		require.Failf(t, "returned before the deadline", "%v", err)
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Second)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrNoResponse)
	case <-time.After(2 * time.Second):
		require.Fail(t, "deadline did not follow the clock")
	}
	assert.Equal(t, 0, clock.PendingCount())
}

func TestRingerDiscoverAndAnnounce(t *testing.T) {
	t.Parallel()

	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Publish(mock.Anything, "/bob/ringer/discover", mock.Anything, false).Return(nil).Once()
	transport.EXPECT().Publish(mock.Anything, "/bob/ringer/available", mock.Anything, true).
		Run(func(_ context.Context, _ string, payload []byte, _ bool) {
			assert.JSONEq(t, `{"ringer_id":"bob-node","user":"bob","available_chimes":["alice/desk"],"timestamp":"2026-10-19T09:00:00Z"}`, string(payload))
		}).
		Return(nil).
		Once()

	ringer := NewRingerService(transport, clockadapter.NewFake(epoch), "bob", "bob-node")
	require.NoError(t, ringer.Discover(context.Background()))
	require.NoError(t, ringer.AnnounceAvailable(context.Background(), []string{"alice/desk"}))
}
