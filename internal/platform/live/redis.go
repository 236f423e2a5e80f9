package live

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultChannel = "relayloop:live"

// RedisRelay publishes events to a Redis channel and relays the channel
// into a local hub, so every replica's subscribers see every event.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  zerolog.Logger
	ready   chan struct{}
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger zerolog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Publish sends event to the channel. Local delivery happens when the
// relay receives it back.
func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Ready is closed once Run has subscribed to the channel.
func (r *RedisRelay) Ready() <-chan struct{} { return r.ready }

// Run relays channel messages into the hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	close(r.ready)
	r.logger.Info().Str("channel", r.channel).Msg("live relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var envelope struct {
				Topics []string `json:"topics"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				r.logger.Warn().Err(err).Msg("dropping malformed live event")
				continue
			}
			r.hub.Deliver(envelope.Topics, []byte(msg.Payload))
		}
	}
}
