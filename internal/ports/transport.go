package ports

import "context"

// Message is one publication as seen by a subscriber.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Transport is the publish/subscribe substrate. Patterns use MQTT wildcards:
// "+" matches one topic level and a trailing "#" matches the rest.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
	// Subscribe delivers matching messages until ctx is done, then closes the
	// channel.
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
	Close() error
}
