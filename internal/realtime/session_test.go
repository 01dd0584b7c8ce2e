package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifmoo/notif/internal/pubsub"
)

func newTestSession(bus pubsub.Bus) *Session {
	hub := NewHub(bus, 0)
	roster := NewRoster(bus)
	signer := NewSigner("test-secret")
	return NewSession(nil, nil, hub, roster, signer, nil)
}

func popFrame(t *testing.T, q *frameQueue) string {
	t.Helper()
	ch := make(chan string, 1)
	go func() {
		if frame, ok := q.Pop(); ok {
			ch <- frame
		}
	}()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func tryPopFrame(q *frameQueue) (string, bool) {
	ch := make(chan string, 1)
	go func() {
		if frame, ok := q.Pop(); ok {
			ch <- frame
		}
	}()
	select {
	case frame := <-ch:
		return frame, true
	case <-time.After(100 * time.Millisecond):
		return "", false
	}
}

func frameEvent(t *testing.T, frame string) string {
	t.Helper()
	var parsed struct {
		Event string `json:"event"`
	}
	require.NoError(t, json.Unmarshal([]byte(frame), &parsed))
	return parsed.Event
}

func TestSessionSubscribePublicChannel(t *testing.T) {
	bus := pubsub.NewLocalBus()
	s := newTestSession(bus)

	s.handleSubscribe(SubscribePayload{Channel: "room"})

	frame := popFrame(t, s.out)
	assert.Equal(t, "pusher_internal:subscription_succeeded", frameEvent(t, frame))
	assert.Contains(t, s.subscribed, "room")

	_, err := s.hub.Broadcast(context.Background(), "room", "new-message", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(popFrame(t, s.out)), &event))
	assert.Equal(t, "new-message", event.Event)
	assert.Equal(t, "room", event.Channel)
}

func TestSessionSubscribePrivateWithoutAuth(t *testing.T) {
	s := newTestSession(pubsub.NewLocalBus())

	s.handleSubscribe(SubscribePayload{Channel: "private-orders"})

	frame := popFrame(t, s.out)
	assert.Equal(t, "pusher:error", frameEvent(t, frame))
	assert.NotContains(t, s.subscribed, "private-orders")
}

func TestSessionSubscribePrivateWithValidAuth(t *testing.T) {
	s := newTestSession(pubsub.NewLocalBus())
	auth := s.signer.Sign(s.SocketID, "private-orders", "")

	s.handleSubscribe(SubscribePayload{Channel: "private-orders", Auth: auth})

	frame := popFrame(t, s.out)
	assert.Equal(t, "pusher_internal:subscription_succeeded", frameEvent(t, frame))
	assert.Contains(t, s.subscribed, "private-orders")
}

func TestSessionSubscribePresence(t *testing.T) {
	bus := pubsub.NewLocalBus()
	s := newTestSession(bus)

	channelData := `{"user_id":"alice"}`
	auth := s.signer.Sign(s.SocketID, "presence-lobby", channelData)

	s.handleSubscribe(SubscribePayload{
		Channel:     "presence-lobby",
		Auth:        auth,
		ChannelData: json.RawMessage(channelData),
	})

	frame := popFrame(t, s.out)

	var parsed struct {
		Event   string `json:"event"`
		Channel string `json:"channel"`
		Data    struct {
			Presence struct {
				IDs   []string `json:"ids"`
				Count int      `json:"count"`
			} `json:"presence"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(frame), &parsed))
	assert.Equal(t, "pusher_internal:subscription_succeeded", parsed.Event)
	assert.Equal(t, "presence-lobby", parsed.Channel)
	assert.Equal(t, []string{"alice"}, parsed.Data.Presence.IDs)
	assert.Equal(t, 1, parsed.Data.Presence.Count)

	members, err := s.roster.ListMembers(context.Background(), "presence-lobby")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].UserID)
}

func TestSessionUnsubscribeStopsForwarding(t *testing.T) {
	bus := pubsub.NewLocalBus()
	s := newTestSession(bus)

	s.handleSubscribe(SubscribePayload{Channel: "room"})
	popFrame(t, s.out) // succeeded

	s.handleUnsubscribe("room")
	assert.NotContains(t, s.subscribed, "room")

	// Give the cancelled forwarder time to detach its receiver.
	time.Sleep(50 * time.Millisecond)

	_, err := s.hub.Broadcast(context.Background(), "room", "msg", json.RawMessage(`1`))
	require.NoError(t, err)

	_, got := tryPopFrame(s.out)
	assert.False(t, got, "frame forwarded after unsubscribe")
}

func TestSessionUnsubscribePresenceRemovesMember(t *testing.T) {
	bus := pubsub.NewLocalBus()
	s := newTestSession(bus)

	channelData := `{"user_id":"alice"}`
	auth := s.signer.Sign(s.SocketID, "presence-lobby", channelData)
	s.handleSubscribe(SubscribePayload{
		Channel:     "presence-lobby",
		Auth:        auth,
		ChannelData: json.RawMessage(channelData),
	})
	popFrame(t, s.out)

	s.handleUnsubscribe("presence-lobby")

	members, err := s.roster.ListMembers(context.Background(), "presence-lobby")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSessionDispatchPing(t *testing.T) {
	s := newTestSession(pubsub.NewLocalBus())

	s.dispatch(&ClientMessage{Event: EventPing})

	frame := popFrame(t, s.out)
	assert.Equal(t, "pusher:pong", frameEvent(t, frame))
}

func TestSessionDispatchUnknownEventIgnored(t *testing.T) {
	s := newTestSession(pubsub.NewLocalBus())

	s.dispatch(&ClientMessage{Event: "pusher:mystery"})
	s.dispatch(&ClientMessage{Event: EventSubscribe, Data: json.RawMessage(`"not an object"`)})

	_, got := tryPopFrame(s.out)
	assert.False(t, got)
}

func TestSessionTeardownRemovesPresenceMemberships(t *testing.T) {
	bus := pubsub.NewLocalBus()
	s := newTestSession(bus)

	presenceChannels := []string{"presence-lobby", "presence-game"}
	for _, channel := range presenceChannels {
		channelData := `{"user_id":"alice"}`
		auth := s.signer.Sign(s.SocketID, channel, channelData)
		s.handleSubscribe(SubscribePayload{
			Channel:     channel,
			Auth:        auth,
			ChannelData: json.RawMessage(channelData),
		})
		popFrame(t, s.out)
	}
	s.handleSubscribe(SubscribePayload{Channel: "room"})
	popFrame(t, s.out)

	// The writer normally runs from Run; with the queue drained it blocks in
	// Pop until teardown closes the queue.
	go s.writer()

	done := make(chan struct{})
	go func() {
		s.teardown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown did not complete")
	}

	for _, channel := range presenceChannels {
		members, err := s.roster.ListMembers(context.Background(), channel)
		require.NoError(t, err)
		assert.Empty(t, members, "membership left on %s", channel)
	}

	select {
	case <-s.writerDone:
	default:
		t.Fatal("writer still running after teardown")
	}
	assert.Error(t, s.ctx.Err(), "forwarder context not cancelled")
}

func TestNewSocketIDFormat(t *testing.T) {
	id := NewSocketID()
	assert.Regexp(t, `^\d+\.[0-9a-f]{32}$`, id)
	assert.NotEqual(t, id, NewSocketID())
}
