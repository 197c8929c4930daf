package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bnema/chimenet/internal/ports"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultPublishTimeout = 2 * time.Second
	defaultKeepAlive      = 30 * time.Second
	subscriberBuffer      = 256
)

var (
	ErrNotConnected = errors.New("mqtt not connected")
	ErrClosed       = errors.New("mqtt transport closed")
)

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	KeepAlive      time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Broker) == "" {
		return errors.New("mqtt broker is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("mqtt client id is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos %d out of range", c.QoS)
	}

	return nil
}

// BrokerURL adds the tcp scheme when the broker is a bare host:port.
func (c Config) BrokerURL() string {
	broker := strings.TrimSpace(c.Broker)
	if strings.Contains(broker, "://") {
		return broker
	}

	return "tcp://" + broker
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = defaultKeepAlive
	}

	return c
}

// Transport implements ports.Transport on an MQTT broker. Every distinct
// pattern holds one broker subscription shared by its local subscribers, and
// all patterns are renewed after a reconnect.
type Transport struct {
	cfg    Config
	client pahomqtt.Client
	logger *slog.Logger

	mu        sync.RWMutex
	patterns  map[string]map[*subscriber]struct{}
	connected bool
	closed    bool
}

type subscriber struct {
	ch   chan ports.Message
	done <-chan struct{}
}

var _ ports.Transport = (*Transport)(nil)

// Dial connects to the broker and returns a ready transport.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	t := newTransport(cfg, nil, logger)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = t.onConnect
	opts.OnConnectionLost = t.onConnectionLost

	t.client = pahomqtt.NewClient(opts)

	t.logger.Info("connecting to mqtt broker", "broker", cfg.BrokerURL())
	token := t.client.Connect()
	if err := wait(ctx, token, cfg.ConnectTimeout); err != nil {
		t.client.Disconnect(0)
		return nil, fmt.Errorf("connect mqtt broker %s: %w", cfg.BrokerURL(), err)
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	return t, nil
}

func newTransport(cfg Config, client pahomqtt.Client, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		cfg:      cfg.withDefaults(),
		client:   client,
		logger:   logger.With("broker", cfg.BrokerURL(), "client_id", cfg.ClientID),
		patterns: map[string]map[*subscriber]struct{}{},
	}
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	t.mu.RLock()
	closed, connected := t.closed, t.connected
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !connected {
		return ErrNotConnected
	}

	token := t.client.Publish(topic, t.cfg.QoS, retain, payload)
	if err := wait(ctx, token, t.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	t.logger.Debug("mqtt published", "topic", topic, "retained", retain, "size", len(payload))
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, pattern string) (<-chan ports.Message, error) {
	sub := &subscriber{
		ch:   make(chan ports.Message, subscriberBuffer),
		done: ctx.Done(),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	subs, exists := t.patterns[pattern]
	if !exists {
		subs = map[*subscriber]struct{}{}
		t.patterns[pattern] = subs
	}
	subs[sub] = struct{}{}
	t.mu.Unlock()

	if !exists {
		token := t.client.Subscribe(pattern, t.cfg.QoS, t.handler(pattern))
		if err := wait(ctx, token, t.cfg.ConnectTimeout); err != nil {
			t.remove(pattern, sub)
			return nil, fmt.Errorf("subscribe %s: %w", pattern, err)
		}
		t.logger.Debug("mqtt subscribed", "pattern", pattern)
	}

	go func() {
		<-ctx.Done()
		t.remove(pattern, sub)
	}()

	return sub.ch, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	for pattern, subs := range t.patterns {
		for sub := range subs {
			close(sub.ch)
		}
		delete(t.patterns, pattern)
	}
	t.mu.Unlock()

	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(250)
		t.logger.Info("mqtt disconnected")
	}

	return nil
}

// handler fans a broker message out to the local subscribers of pattern.
func (t *Transport) handler(pattern string) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.deliver(pattern, ports.Message{
			Topic:    msg.Topic(),
			Payload:  append([]byte(nil), msg.Payload()...),
			Retained: msg.Retained(),
		})
	}
}

func (t *Transport) deliver(pattern string, msg ports.Message) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for sub := range t.patterns[pattern] {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		}
	}
}

func (t *Transport) remove(pattern string, sub *subscriber) {
	t.mu.Lock()
	subs, ok := t.patterns[pattern]
	if !ok {
		t.mu.Unlock()
		return
	}
	if _, live := subs[sub]; !live {
		t.mu.Unlock()
		return
	}
	delete(subs, sub)
	close(sub.ch)
	last := len(subs) == 0
	if last {
		delete(t.patterns, pattern)
	}
	connected := t.connected
	t.mu.Unlock()

	if last && connected {
		token := t.client.Unsubscribe(pattern)
		if !token.WaitTimeout(t.cfg.PublishTimeout) {
			t.logger.Warn("mqtt unsubscribe timed out", "pattern", pattern)
		} else if err := token.Error(); err != nil {
			t.logger.Warn("mqtt unsubscribe failed", "pattern", pattern, "error", err)
		}
	}
}

func (t *Transport) onConnect(client pahomqtt.Client) {
	t.mu.Lock()
	t.connected = true
	patterns := make([]string, 0, len(t.patterns))
	for pattern := range t.patterns {
		patterns = append(patterns, pattern)
	}
	t.mu.Unlock()

	t.logger.Info("mqtt connection established", "patterns", len(patterns))
	for _, pattern := range patterns {
		token := client.Subscribe(pattern, t.cfg.QoS, t.handler(pattern))
		if !token.WaitTimeout(t.cfg.ConnectTimeout) {
			t.logger.Warn("mqtt resubscribe timed out", "pattern", pattern)
			continue
		}
		if err := token.Error(); err != nil {
			t.logger.Warn("mqtt resubscribe failed", "pattern", pattern, "error", err)
		}
	}
}

func (t *Transport) onConnectionLost(_ pahomqtt.Client, err error) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	t.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
}

func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
