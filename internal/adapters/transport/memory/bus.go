package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bnema/chimenet/internal/ports"
	"github.com/bnema/chimenet/internal/protocol"
)

const defaultBuffer = 256

var ErrClosed = errors.New("memory bus closed")

// Bus is an in-process broker with MQTT-style wildcards and retained
// messages. Several nodes can share one Bus in a single process.
type Bus struct {
	mu       sync.RWMutex
	subs     map[*subscription]struct{}
	retained map[string][]byte
	closed   bool
}

type subscription struct {
	pattern string
	ch      chan ports.Message
	done    <-chan struct{}
}

var _ ports.Transport = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		subs:     map[*subscription]struct{}{},
		retained: map[string][]byte{},
	}
}

// Publish delivers to every matching subscriber. A retained publication with
// an empty payload clears the retained message for the topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := ports.Message{Topic: topic, Payload: append([]byte(nil), payload...)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if retain {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = msg.Payload
		}
	}
	targets := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		if protocol.MatchTopic(sub.pattern, topic) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range targets {
		if _, live := b.subs[sub]; !live {
			continue
		}
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Subscribe replays retained messages matching pattern, then streams live
// ones until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, pattern string) (<-chan ports.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	var replay []ports.Message
	for topic, payload := range b.retained {
		if protocol.MatchTopic(pattern, topic) {
			replay = append(replay, ports.Message{Topic: topic, Payload: payload, Retained: true})
		}
	}
	sort.Slice(replay, func(i, j int) bool { return replay[i].Topic < replay[j].Topic })

	sub := &subscription{
		pattern: pattern,
		ch:      make(chan ports.Message, defaultBuffer+len(replay)),
		done:    ctx.Done(),
	}
	for _, msg := range replay {
		sub.ch <- msg
	}
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.unsubscribe(sub)
	}()

	return sub.ch, nil
}

func (b *Bus) Retained(topic string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	payload, ok := b.retained[topic]
	return payload, ok
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}

	return nil
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
