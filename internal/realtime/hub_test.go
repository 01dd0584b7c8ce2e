package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifmoo/notif/internal/pubsub"
)

// countingBus wraps a bus and counts upstream Subscribe calls.
type countingBus struct {
	pubsub.Bus
	mu    sync.Mutex
	calls int
}

func (b *countingBus) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return b.Bus.Subscribe(ctx, channel)
}

func (b *countingBus) subscribeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func recvFrame(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case payload, ok := <-ch:
		require.True(t, ok, "receiver closed")
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return ""
	}
}

func TestHubSingleUpstreamSubscription(t *testing.T) {
	bus := &countingBus{Bus: pubsub.NewLocalBus()}
	hub := NewHub(bus, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := hub.Subscribe("room")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, bus.subscribeCalls())
	assert.Equal(t, 1, hub.ChannelCount())
}

func TestHubBroadcastFansOut(t *testing.T) {
	bus := pubsub.NewLocalBus()
	hub := NewHub(bus, 0)

	r1, err := hub.Subscribe("room")
	require.NoError(t, err)
	r2, err := hub.Subscribe("room")
	require.NoError(t, err)

	count, err := hub.Broadcast(context.Background(), "room", "new-message", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	// One upstream subscription regardless of local receiver count.
	assert.Equal(t, int64(1), count)

	for _, r := range []*Receiver{r1, r2} {
		var event Event
		require.NoError(t, json.Unmarshal([]byte(recvFrame(t, r.C)), &event))
		assert.Equal(t, "new-message", event.Event)
		assert.Equal(t, "room", event.Channel)
		assert.JSONEq(t, `{"text":"hi"}`, string(event.Data))
	}
}

func TestHubBroadcastPreservesOrder(t *testing.T) {
	bus := pubsub.NewLocalBus()
	hub := NewHub(bus, 0)

	r, err := hub.Subscribe("room")
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := hub.Broadcast(context.Background(), "room", "msg", json.RawMessage(`"`+text+`"`))
		require.NoError(t, err)
	}

	for _, want := range []string{"one", "two", "three"} {
		var event Event
		require.NoError(t, json.Unmarshal([]byte(recvFrame(t, r.C)), &event))
		assert.Equal(t, `"`+want+`"`, string(event.Data))
	}
}

func TestHubChannelsAreIsolated(t *testing.T) {
	bus := pubsub.NewLocalBus()
	hub := NewHub(bus, 0)

	rA, err := hub.Subscribe("room-a")
	require.NoError(t, err)
	rB, err := hub.Subscribe("room-b")
	require.NoError(t, err)

	_, err = hub.Broadcast(context.Background(), "room-a", "msg", json.RawMessage(`1`))
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(recvFrame(t, rA.C)), &event))
	assert.Equal(t, "room-a", event.Channel)

	select {
	case payload := <-rB.C:
		t.Fatalf("unexpected payload on room-b: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribeClosesReceivers(t *testing.T) {
	bus := pubsub.NewLocalBus()
	hub := NewHub(bus, 0)

	r, err := hub.Subscribe("room")
	require.NoError(t, err)

	hub.Unsubscribe("room")

	select {
	case _, ok := <-r.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver not closed")
	}
	assert.Equal(t, 0, hub.ChannelCount())
}

func TestReceiverCloseDetaches(t *testing.T) {
	bus := pubsub.NewLocalBus()
	hub := NewHub(bus, 0)

	r, err := hub.Subscribe("room")
	require.NoError(t, err)
	r.Close()

	_, ok := <-r.C
	assert.False(t, ok)
}

func TestBroadcasterDropsOldestWhenLagging(t *testing.T) {
	b := newBroadcaster(func() {})
	r := b.newReceiver(1)

	assert.Equal(t, 0, b.publish("first"))
	// Buffer full: the oldest pending message is dropped for the newest.
	assert.Equal(t, 1, b.publish("second"))

	payload := <-r.ch
	assert.Equal(t, "second", payload)
}
