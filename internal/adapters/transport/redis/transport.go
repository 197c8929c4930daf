package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bnema/chimenet/internal/ports"
	"github.com/bnema/chimenet/internal/protocol"
)

const (
	defaultRetainedPrefix = "chimenet:retained:"
	subscriberBuffer      = 256
	pingTimeout           = 2 * time.Second
)

type Config struct {
	Addr           string
	Password       string
	DB             int
	RetainedPrefix string
}

// Transport carries the chime topics over Redis pub/sub. Redis has no
// retained messages, so the latest retained payload of each topic is also
// stored under a key and replayed to new subscribers.
type Transport struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

var _ ports.Transport = (*Transport)(nil)

// Dial connects and pings the server before returning.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Transport, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return New(client, cfg.RetainedPrefix, logger), nil
}

func New(client *goredis.Client, retainedPrefix string, logger *slog.Logger) *Transport {
	if retainedPrefix == "" {
		retainedPrefix = defaultRetainedPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{client: client, prefix: retainedPrefix, logger: logger}
}

// Publish stores retained payloads before fanning out, so a subscriber that
// joins in between still sees the latest value. An empty retained payload
// deletes the stored one.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if retain {
		key := t.prefix + topic
		var err error
		if len(payload) == 0 {
			err = t.client.Del(ctx, key).Err()
		} else {
			err = t.client.Set(ctx, key, payload, 0).Err()
		}
		if err != nil {
			return fmt.Errorf("store retained %s: %w", topic, err)
		}
	}

	if err := t.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// Subscribe listens on the Redis glob equivalent of pattern and filters with
// the exact MQTT matching rules, since "*" also crosses "/" in Redis.
func (t *Transport) Subscribe(ctx context.Context, pattern string) (<-chan ports.Message, error) {
	glob := GlobPattern(pattern)

	pubsub := t.client.PSubscribe(ctx, glob)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", glob, err)
	}

	replay, err := t.retained(ctx, pattern, glob)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan ports.Message, subscriberBuffer+len(replay))
	for _, msg := range replay {
		out <- msg
	}

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		live := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-live:
				if !ok {
					return
				}
				if !protocol.MatchTopic(pattern, msg.Channel) {
					continue
				}
				select {
				case out <- ports.Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (t *Transport) Close() error {
	return t.client.Close()
}

func (t *Transport) retained(ctx context.Context, pattern, glob string) ([]ports.Message, error) {
	var replay []ports.Message

	iter := t.client.Scan(ctx, 0, t.prefix+glob, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		topic := strings.TrimPrefix(key, t.prefix)
		if !protocol.MatchTopic(pattern, topic) {
			continue
		}
		payload, err := t.client.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read retained %s: %w", topic, err)
		}
		replay = append(replay, ports.Message{Topic: topic, Payload: payload, Retained: true})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan retained %s: %w", glob, err)
	}

	sort.Slice(replay, func(i, j int) bool { return replay[i].Topic < replay[j].Topic })
	t.logger.Debug("replaying retained", "pattern", pattern, "count", len(replay))

	return replay, nil
}

// GlobPattern turns an MQTT topic filter into a Redis glob that matches at
// least the same topics.
func GlobPattern(pattern string) string {
	var b strings.Builder
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		if i > 0 {
			b.WriteByte('/')
		}
		switch level {
		case "+":
			b.WriteByte('*')
		case "#":
			if i > 0 {
				// "a/#" also matches "a" itself.
				trimmed := strings.TrimSuffix(b.String(), "/")
				b.Reset()
				b.WriteString(trimmed)
			}
			b.WriteByte('*')
		default:
			b.WriteString(escapeGlob(level))
		}
	}

	return b.String()
}

func escapeGlob(literal string) string {
	var b strings.Builder
	for _, r := range literal {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}

	return b.String()
}
