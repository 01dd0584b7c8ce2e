package pubsub

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
)

// RedisBus implements Bus using Redis pub/sub for events and Redis sets and
// hashes for presence membership. Commands go through a shared multiplexed
// connection; each channel subscription holds its own connection.
type RedisBus struct {
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus connects to Redis and verifies the connection.
// url should be in the format: redis://[password@]host:port[/db]
func NewRedisBus(url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "invalid redis url", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, apperrors.Bus(err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis bus")

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{client: client, ctx: ctx, cancel: cancel}, nil
}

// Publish sends a payload to all subscribers of a channel and returns the
// delivered count reported by Redis.
func (r *RedisBus) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	count, err := r.client.Publish(ctx, ChannelKey(channel), payload).Result()
	if err != nil {
		return 0, apperrors.Bus(err)
	}
	log.Debug().Str("channel", channel).Int64("count", count).Msg("Published to bus")
	return count, nil
}

// Subscribe opens a Redis subscription for the channel and returns a channel
// of raw payload strings. The subscription lives until ctx is cancelled or the
// bus is closed.
func (r *RedisBus) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	sub := r.client.Subscribe(r.ctx, ChannelKey(channel))

	// Wait for the subscription to be confirmed before returning, so a
	// publish after Subscribe returns is guaranteed to be observed.
	if _, err := sub.Receive(r.ctx); err != nil {
		_ = sub.Close()
		return nil, apperrors.Bus(err)
	}

	log.Info().Str("channel", channel).Msg("Subscribed to bus channel")

	out := make(chan string, 64)
	msgCh := sub.Channel()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				case <-r.ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// PresenceAdd records a member under the channel's presence set and hash.
func (r *RedisBus) PresenceAdd(ctx context.Context, channel, socketID string, member []byte) error {
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, PresenceSetPrefix+channel, socketID)
	pipe.HSet(ctx, PresenceHashPrefix+channel, socketID, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Bus(err)
	}
	return nil
}

// PresenceRemove drops a member from the channel's presence set and hash.
func (r *RedisBus) PresenceRemove(ctx context.Context, channel, socketID string) error {
	pipe := r.client.Pipeline()
	pipe.SRem(ctx, PresenceSetPrefix+channel, socketID)
	pipe.HDel(ctx, PresenceHashPrefix+channel, socketID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Bus(err)
	}
	return nil
}

// PresenceMembers returns all serialized members of a channel keyed by socket id.
func (r *RedisBus) PresenceMembers(ctx context.Context, channel string) (map[string]string, error) {
	members, err := r.client.HGetAll(ctx, PresenceHashPrefix+channel).Result()
	if err != nil {
		return nil, apperrors.Bus(err)
	}
	return members, nil
}

// Close terminates all subscriptions and closes the client.
func (r *RedisBus) Close() error {
	r.cancel()
	r.wg.Wait()
	err := r.client.Close()
	log.Info().Msg("Redis bus closed")
	return err
}
