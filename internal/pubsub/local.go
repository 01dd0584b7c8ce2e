package pubsub

import (
	"context"
	"sync"
)

// localSubscriber is a single subscription with its channel and closed state.
type localSubscriber struct {
	ch     chan string
	closed bool
	mu     sync.Mutex
}

// send delivers a payload to the subscriber.
// Returns false if the subscriber is closed or its buffer is full.
func (s *localSubscriber) send(payload string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

func (s *localSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// LocalBus implements Bus in-process for single-instance deployments and
// tests. Presence state lives in maps instead of Redis keys.
type LocalBus struct {
	subscribers map[string][]*localSubscriber
	presence    map[string]map[string]string // channel -> socket_id -> member
	mu          sync.RWMutex
}

// NewLocalBus creates an in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{
		subscribers: make(map[string][]*localSubscriber),
		presence:    make(map[string]map[string]string),
	}
}

// Publish delivers a payload to all local subscribers of a channel and
// returns how many received it.
func (l *LocalBus) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	l.mu.RLock()
	subs := make([]*localSubscriber, len(l.subscribers[channel]))
	copy(subs, l.subscribers[channel])
	l.mu.RUnlock()

	var count int64
	for _, sub := range subs {
		if sub.send(string(payload)) {
			count++
		}
	}
	return count, nil
}

// Subscribe registers a local subscriber for a channel.
func (l *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	sub := &localSubscriber{ch: make(chan string, 64)}

	l.mu.Lock()
	l.subscribers[channel] = append(l.subscribers[channel], sub)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.unsubscribe(channel, sub)
	}()

	return sub.ch, nil
}

func (l *LocalBus) unsubscribe(channel string, sub *localSubscriber) {
	l.mu.Lock()
	subs := l.subscribers[channel]
	for i, s := range subs {
		if s == sub {
			l.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	// Close outside the lock to avoid blocking publishers.
	sub.close()
}

// PresenceAdd records a member for a socket on a channel.
func (l *LocalBus) PresenceAdd(ctx context.Context, channel, socketID string, member []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.presence[channel] == nil {
		l.presence[channel] = make(map[string]string)
	}
	l.presence[channel][socketID] = string(member)
	return nil
}

// PresenceRemove drops a socket's member from a channel.
func (l *LocalBus) PresenceRemove(ctx context.Context, channel, socketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if members := l.presence[channel]; members != nil {
		delete(members, socketID)
		if len(members) == 0 {
			delete(l.presence, channel)
		}
	}
	return nil
}

// PresenceMembers returns a copy of the channel's members keyed by socket id.
func (l *LocalBus) PresenceMembers(ctx context.Context, channel string) (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.presence[channel]))
	for socketID, member := range l.presence[channel] {
		out[socketID] = member
	}
	return out, nil
}

// Close releases all subscriptions.
func (l *LocalBus) Close() error {
	l.mu.Lock()
	allSubs := make([]*localSubscriber, 0)
	for _, subs := range l.subscribers {
		allSubs = append(allSubs, subs...)
	}
	l.subscribers = make(map[string][]*localSubscriber)
	l.mu.Unlock()

	for _, sub := range allSubs {
		sub.close()
	}
	return nil
}
