package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	clockadapter "github.com/bnema/chimenet/internal/adapters/clock"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHeartbeatKeepsTickingAfterFailure(t *testing.T) {
	t.Parallel()

	clock := clockadapter.NewFake(epoch)
	var calls atomic.Int32
	heartbeat := NewHeartbeat(clock, 0, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("broker unreachable")
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		heartbeat.Run(ctx)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(domain.HeartbeatInterval)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(domain.HeartbeatInterval)
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, clock.PendingCount())
}

func TestHeartbeatDoesNotFireEarly(t *testing.T) {
	t.Parallel()

	clock := clockadapter.NewFake(epoch)
	var calls atomic.Int32
	heartbeat := NewHeartbeat(clock, time.Minute, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go heartbeat.Run(ctx)

	clock.WaitForTimers(1)
	clock.Advance(59 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
