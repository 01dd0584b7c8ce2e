// Package realtime implements the fan-out engine: channel classification,
// channel auth, the hub with its single upstream bus subscription per channel,
// the presence roster, and the per-socket session state machine.
package realtime

import "strings"

// ChannelType is the flavor of a channel, derived from its name prefix.
type ChannelType int

const (
	// ChannelPublic requires no auth.
	ChannelPublic ChannelType = iota
	// ChannelPrivate requires an auth signature.
	ChannelPrivate
	// ChannelPresence requires auth and tracks who is online.
	ChannelPresence
)

// ChannelTypeOf classifies a channel name. Pusher-style: `presence-*` wins,
// then `private-*`, everything else is public.
func ChannelTypeOf(name string) ChannelType {
	switch {
	case strings.HasPrefix(name, "presence-"):
		return ChannelPresence
	case strings.HasPrefix(name, "private-"):
		return ChannelPrivate
	default:
		return ChannelPublic
	}
}

// IsAuthenticated reports whether the channel type requires an auth handshake.
func (t ChannelType) IsAuthenticated() bool {
	return t == ChannelPrivate || t == ChannelPresence
}

func (t ChannelType) String() string {
	switch t {
	case ChannelPrivate:
		return "private"
	case ChannelPresence:
		return "presence"
	default:
		return "public"
	}
}
