package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/observability"
	"github.com/notifmoo/notif/internal/pubsub"
)

// DefaultChannelBuffer is the per-receiver broadcast buffer size.
const DefaultChannelBuffer = 64

// Hub maintains, for each channel of interest to this process, a single
// upstream bus subscription fanned out to many local receivers. It also
// issues publishes; local sockets receive published events through the bus,
// never through a local bypass, so delivery semantics are identical
// regardless of colocation.
type Hub struct {
	bus      pubsub.Bus
	bufSize  int
	metrics  *observability.Metrics
	mu       sync.RWMutex
	channels map[string]*broadcaster
}

// NewHub creates a hub over the given bus. bufSize <= 0 uses the default.
func NewHub(bus pubsub.Bus, bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultChannelBuffer
	}
	return &Hub{
		bus:      bus,
		bufSize:  bufSize,
		channels: make(map[string]*broadcaster),
	}
}

// SetMetrics attaches metrics recording. Optional.
func (h *Hub) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// Subscribe attaches a local receiver to the channel, creating the upstream
// bus subscription if this is the channel's first local subscriber. The
// exclusive section guarantees at most one upstream subscription per channel.
func (h *Hub) Subscribe(channel string) (*Receiver, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.channels[channel]; ok {
		return b.newReceiver(h.bufSize), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	src, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		cancel()
		return nil, err
	}

	b := newBroadcaster(cancel)
	h.channels[channel] = b

	go h.forward(channel, b, src)

	return b.newReceiver(h.bufSize), nil
}

// forward drains the bus subscription for a channel into its broadcaster.
// It runs until the bus sequence ends, then tears the entry down so a later
// subscribe re-establishes the upstream subscription.
func (h *Hub) forward(channel string, b *broadcaster, src <-chan string) {
	for payload := range src {
		dropped := b.publish(payload)
		if dropped > 0 {
			log.Warn().
				Str("channel", channel).
				Int("dropped", dropped).
				Msg("Lagging receivers dropped oldest pending messages")
			if h.metrics != nil {
				h.metrics.Dropped.Add(float64(dropped))
			}
		}
		if h.metrics != nil {
			h.metrics.Messages.WithLabelValues(channel).Inc()
		}
	}

	log.Info().Str("channel", channel).Msg("Bus subscription ended")
	h.mu.Lock()
	if h.channels[channel] == b {
		delete(h.channels, channel)
	}
	h.mu.Unlock()
	b.stop()
}

// Broadcast publishes the wire event to the bus and returns the number of
// upstream subscribers it reached.
func (h *Hub) Broadcast(ctx context.Context, channel, event string, data json.RawMessage) (int64, error) {
	payload, err := json.Marshal(Event{Event: event, Channel: channel, Data: data})
	if err != nil {
		return 0, err
	}

	count, err := h.bus.Publish(ctx, channel, payload)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("channel", channel).
		Str("event", event).
		Int64("count", count).
		Msg("Broadcast")
	return count, nil
}

// Unsubscribe tears down the channel's upstream subscription and closes all
// local receivers. Best-effort cleanup hook; not called from the happy path.
func (h *Hub) Unsubscribe(channel string) {
	h.mu.Lock()
	b, ok := h.channels[channel]
	delete(h.channels, channel)
	h.mu.Unlock()

	if ok {
		b.stop()
		log.Debug().Str("channel", channel).Msg("Channel hub entry removed")
	}
}

// ChannelCount returns the number of channels with a live upstream subscription.
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// broadcaster distributes payloads from one bus subscription to its local
// receivers.
type broadcaster struct {
	mu        sync.Mutex
	receivers map[*Receiver]struct{}
	cancel    context.CancelFunc
	closed    bool
}

func newBroadcaster(cancel context.CancelFunc) *broadcaster {
	return &broadcaster{
		receivers: make(map[*Receiver]struct{}),
		cancel:    cancel,
	}
}

func (b *broadcaster) newReceiver(bufSize int) *Receiver {
	r := &Receiver{ch: make(chan string, bufSize), b: b}
	r.C = r.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(r.ch)
		return r
	}
	b.receivers[r] = struct{}{}
	return r
}

// publish fans a payload out to every receiver. A receiver whose buffer is
// full loses its oldest pending message (lagging-reader policy). Returns the
// number of dropped messages.
func (b *broadcaster) publish(payload string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for r := range b.receivers {
		select {
		case r.ch <- payload:
		default:
			select {
			case <-r.ch:
				dropped++
			default:
			}
			select {
			case r.ch <- payload:
			default:
			}
		}
	}
	return dropped
}

func (b *broadcaster) remove(r *Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.receivers[r]; ok {
		delete(b.receivers, r)
		close(r.ch)
	}
}

// stop cancels the upstream subscription and closes every receiver.
func (b *broadcaster) stop() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for r := range b.receivers {
		close(r.ch)
	}
	b.receivers = make(map[*Receiver]struct{})
}

// Receiver is one local subscriber's view of a channel's broadcast.
type Receiver struct {
	// C yields payloads in bus order. Closed when the receiver is detached
	// or the channel's upstream subscription ends.
	C <-chan string

	ch chan string
	b  *broadcaster
}

// Close detaches the receiver from its broadcaster and closes C.
func (r *Receiver) Close() {
	r.b.remove(r)
}
