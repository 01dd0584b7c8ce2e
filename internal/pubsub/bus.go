// Package pubsub wraps the message bus behind a Bus interface: channel
// publish/subscribe for event fan-out and key-value primitives for presence
// membership. The bus is the source of truth for presence, so multiple
// instances of this process share state consistently.
package pubsub

import (
	"context"
)

// Key prefixes under which channels and presence state live on the bus.
const (
	ChannelPrefix      = "notif:channel:"
	PresenceSetPrefix  = "notif:presence:"
	PresenceHashPrefix = "notif:presence_hash:"
)

// ChannelKey returns the bus key for a logical channel name.
func ChannelKey(channel string) string {
	return ChannelPrefix + channel
}

// Bus is the interface for pub/sub backends.
// Implementations must be safe for concurrent use.
type Bus interface {
	// Publish sends a payload to all bus subscribers of a logical channel
	// and returns the number of subscribers it reached.
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)

	// Subscribe returns a channel of payloads published to the given logical
	// channel. The returned channel is closed when ctx is cancelled, when the
	// subscription fails unrecoverably, or when the bus is closed.
	Subscribe(ctx context.Context, channel string) (<-chan string, error)

	// PresenceAdd records a serialized presence member for a socket on a channel.
	PresenceAdd(ctx context.Context, channel, socketID string, member []byte) error

	// PresenceRemove removes a socket's presence member from a channel.
	PresenceRemove(ctx context.Context, channel, socketID string) error

	// PresenceMembers returns all serialized members of a channel keyed by socket id.
	PresenceMembers(ctx context.Context, channel string) (map[string]string, error)

	// Close releases all resources and closes all subscriptions.
	Close() error
}
