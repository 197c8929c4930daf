package application

import (
	"context"
	"testing"
	"time"

	clockadapter "github.com/bnema/chimenet/internal/adapters/clock"
	"github.com/bnema/chimenet/internal/adapters/transport/memory"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/bnema/chimenet/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := protocol.Encode(v)
	require.NoError(t, err)
	return payload
}

func newTestDiscovery(opts ...DiscoveryOption) (*DiscoveryService, *clockadapter.Fake) {
	clock := clockadapter.NewFake(epoch)
	registry := NewDiscoveryRegistry(clock, 0)
	return NewDiscoveryService(registry, memory.NewBus(), clock, nil, opts...), clock
}

func TestDiscoveryHandleChimeList(t *testing.T) {
	t.Parallel()

	service, _ := newTestDiscovery()
	description := "by the window"
	list := protocol.ChimeList{
		User: "bob",
		Chimes: []protocol.ChimeInfo{
			{ID: "porch", Name: "Porch", Notes: []string{"C4"}, Chords: []string{}},
			{ID: "desk", Name: "Desk", Description: &description, Notes: []string{"E4"}, Chords: []string{"C"}},
		},
		Timestamp: epoch,
	}

	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeListTopic("bob"), Payload: encode(t, list)}))

	records := service.Registry().List("bob")
	require.Len(t, records, 2)
	assert.Equal(t, "desk", records[0].ChimeID)
	assert.Equal(t, "by the window", records[0].Description)
	assert.Equal(t, []string{"C"}, records[0].Chords)
	assert.Equal(t, "porch", records[1].ChimeID)
	assert.True(t, records[1].Online)
	assert.Equal(t, epoch, records[1].LastSeen)
}

func TestDiscoveryHandleRejectsMismatchedList(t *testing.T) {
	t.Parallel()

	service, _ := newTestDiscovery()
	list := protocol.ChimeList{User: "mallory", Chimes: []protocol.ChimeInfo{{ID: "desk", Name: "Desk"}}, Timestamp: epoch}

	err := service.Handle(ports.Message{Topic: protocol.ChimeListTopic("bob"), Payload: encode(t, list)})
	assert.ErrorIs(t, err, domain.ErrMalformedMessage)
	assert.Zero(t, service.Registry().Len())
}

func TestDiscoveryHandleStatusModeAndNotes(t *testing.T) {
	t.Parallel()

	service, clock := newTestDiscovery()

	status := protocol.Status{ChimeID: "desk", Online: true, Mode: protocol.NewWireMode(domain.Grinding), LastSeen: epoch, NodeID: "bob-node"}
	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeStatusTopic("bob", "desk"), Payload: encode(t, status)}))

	clock.Advance(time.Minute)
	notes := []string{"G4", "B4"}
	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeNotesTopic("bob", "desk"), Payload: encode(t, notes)}))
	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeChordsTopic("bob", "desk"), Payload: encode(t, []string{"G"})}))

	update := protocol.NewModeUpdate("bob-node", domain.ResolvedState{Mode: domain.CustomMode("Lunch")}, epoch)
	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeModeTopic("bob", "desk"), Payload: encode(t, update)}))

	record, ok := service.Registry().Get("bob", "desk")
	require.True(t, ok)
	assert.Equal(t, domain.CustomMode("Lunch"), record.Mode)
	assert.Equal(t, notes, record.Notes)
	assert.Equal(t, []string{"G"}, record.Chords)
	assert.Equal(t, "bob-node", record.NodeID)
	assert.Equal(t, epoch.Add(time.Minute), record.LastSeen)
}

func TestDiscoveryHandleIgnoresSkippedUserAndClears(t *testing.T) {
	t.Parallel()

	service, _ := newTestDiscovery(SkipUser("alice"))
	list := protocol.ChimeList{User: "alice", Chimes: []protocol.ChimeInfo{{ID: "desk", Name: "Desk"}}, Timestamp: epoch}

	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeListTopic("alice"), Payload: encode(t, list)}))
	require.NoError(t, service.Handle(ports.Message{Topic: protocol.ChimeListTopic("bob")}))
	assert.Zero(t, service.Registry().Len())

	assert.ErrorIs(t, service.Handle(ports.Message{Topic: "/bob/elsewhere"}), domain.ErrMalformedMessage)
}

func TestDiscoverySweepRemovesStaleRecords(t *testing.T) {
	t.Parallel()

	clock := clockadapter.NewFake(epoch)
	registry := NewDiscoveryRegistry(clock, domain.DiscoveryStaleness)
	var offline []domain.RemoteChimeRecord
	registry.OnOffline(func(r domain.RemoteChimeRecord) { offline = append(offline, r) })

	registry.Update("bob", "desk", func(*domain.RemoteChimeRecord) {})
	clock.Advance(2 * time.Minute)
	registry.Update("carol", "porch", func(*domain.RemoteChimeRecord) {})

	clock.Advance(3 * time.Minute)
	assert.Empty(t, registry.Sweep(clock.Now()))

	clock.Advance(time.Second)
	removed := registry.Sweep(clock.Now())
	require.Len(t, removed, 1)
	assert.Equal(t, "bob", removed[0].User)
	assert.False(t, removed[0].Online)
	require.Len(t, offline, 1)
	assert.Equal(t, domain.RemoteChimeKey{User: "bob", ChimeID: "desk"}, offline[0].Key())

	assert.Equal(t, []string{"carol"}, registry.Users())
}

func TestDiscoveryRegistryHidesStaleRecordsBeforeSweep(t *testing.T) {
	t.Parallel()

	clock := clockadapter.NewFake(epoch)
	registry := NewDiscoveryRegistry(clock, domain.DiscoveryStaleness)
	var offline []domain.RemoteChimeRecord
	registry.OnOffline(func(r domain.RemoteChimeRecord) { offline = append(offline, r) })

	registry.Observe(domain.RemoteChimeRecord{User: "bob", ChimeID: "desk", Name: "Desk Chime", Online: true})
	require.Len(t, registry.List(""), 1)

	clock.Advance(domain.DiscoveryStaleness + 20*time.Second)

	assert.Empty(t, registry.List(""))
	assert.Empty(t, registry.List("bob"))
	assert.Empty(t, registry.Users())
	_, ok := registry.Get("bob", "desk")
	assert.False(t, ok)
	_, ok = registry.FindByName("bob", "desk chime")
	assert.False(t, ok)

	// Still stored until Sweep drops it and reports it offline.
	assert.Equal(t, 1, registry.Len())
	assert.Empty(t, offline)
	require.Len(t, registry.Sweep(clock.Now()), 1)
	require.Len(t, offline, 1)
	assert.Zero(t, registry.Len())
}

func TestDiscoveryRegistryFindByName(t *testing.T) {
	t.Parallel()

	registry := NewDiscoveryRegistry(clockadapter.NewFake(epoch), 0)
	registry.Observe(domain.RemoteChimeRecord{User: "bob", ChimeID: "desk", Name: "Desk Chime", Online: true})

	record, ok := registry.FindByName("bob", "desk chime")
	require.True(t, ok)
	assert.Equal(t, "desk", record.ChimeID)

	_, ok = registry.FindByName("bob", "porch")
	assert.False(t, ok)
}

func TestDiscoveryRunIngestsFromTransport(t *testing.T) {
	t.Parallel()

	clock := clockadapter.NewFake(epoch)
	bus := memory.NewBus()
	service := NewDiscoveryService(NewDiscoveryRegistry(clock, 0), bus, clock, nil, SkipUser("alice"))

	list := protocol.ChimeList{User: "bob", Chimes: []protocol.ChimeInfo{{ID: "desk", Name: "Desk"}}, Timestamp: epoch}
	require.NoError(t, bus.Publish(context.Background(), protocol.ChimeListTopic("bob"), encode(t, list), true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, ok := service.Registry().Get("bob", "desk")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	clock.WaitForTimers(1)
	clock.Advance(domain.DiscoveryStaleness + time.Second)
	assert.Eventually(t, func() bool { return service.Registry().Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
