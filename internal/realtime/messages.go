package realtime

import (
	"encoding/json"
)

// Client frame event tags, matching the Pusher protocol.
const (
	EventSubscribe   = "pusher:subscribe"
	EventUnsubscribe = "pusher:unsubscribe"
	EventPing        = "pusher:ping"
)

// Event is the canonical wire envelope every subscriber receives.
type Event struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// ClientMessage is an inbound frame, discriminated by the event field.
// Unknown events are dropped by the session.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SubscribePayload is the data of a pusher:subscribe frame.
type SubscribePayload struct {
	Channel     string          `json:"channel"`
	Auth        string          `json:"auth,omitempty"`
	ChannelData json.RawMessage `json:"channel_data,omitempty"`
}

// UnsubscribePayload is the data of a pusher:unsubscribe frame.
type UnsubscribePayload struct {
	Channel string `json:"channel"`
}

// ParseClientMessage parses an inbound text frame.
func ParseClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// normalizeChannelData returns the canonical JSON string form of the client's
// channel_data, the form used in auth signing. Empty input stays empty.
func normalizeChannelData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// --- Outbound frames ---

type serverFrame struct {
	Event   string      `json:"event"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func marshalFrame(f serverFrame) string {
	out, _ := json.Marshal(f)
	return string(out)
}

// connectionEstablishedFrame is the first frame sent on a new socket.
func connectionEstablishedFrame(socketID string) string {
	return marshalFrame(serverFrame{
		Event: "connection_established",
		Data:  map[string]string{"socket_id": socketID},
	})
}

// subscriptionSucceededFrame acknowledges a public or private subscription.
func subscriptionSucceededFrame(channel string) string {
	return marshalFrame(serverFrame{
		Event:   "pusher_internal:subscription_succeeded",
		Channel: channel,
	})
}

// presenceSubscriptionSucceededFrame acknowledges a presence subscription with
// the current roster snapshot.
func presenceSubscriptionSucceededFrame(channel string, ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	return marshalFrame(serverFrame{
		Event:   "pusher_internal:subscription_succeeded",
		Channel: channel,
		Data: map[string]interface{}{
			"presence": map[string]interface{}{
				"ids":   ids,
				"hash":  map[string]interface{}{},
				"count": len(ids),
			},
		},
	})
}

// pongFrame answers pusher:ping.
func pongFrame() string {
	return marshalFrame(serverFrame{
		Event: "pusher:pong",
		Data:  map[string]interface{}{},
	})
}

// errorFrame reports a channel-scoped failure without closing the socket.
func errorFrame(message string) string {
	return marshalFrame(serverFrame{
		Event: "pusher:error",
		Data:  map[string]interface{}{"message": message, "code": 4009},
	})
}
