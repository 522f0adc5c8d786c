package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "rentchat:"

// RedisBroker fans events out across nodes. Publish goes to redis only; Run
// feeds every message received from redis into the local hub, so each node
// delivers once to its own subscribers.
type RedisBroker struct {
	client *redis.Client
	local  *Hub
	log    zerolog.Logger
}

func NewRedisBroker(client *redis.Client, local *Hub, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		local:  local,
		log:    log.With().Str("component", "redis_broker").Logger(),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return errors.Wrap(b.client.Publish(ctx, channelPrefix+e.Topic, raw).Err(), "redis publish")
}

func (b *RedisBroker) Subscribe(topic string, pred Predicate, h Handler) *Subscription {
	return b.local.Subscribe(topic, pred, h)
}

// Run relays redis messages into the local hub until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis psubscribe")
	}
	b.log.Info().Msg("relaying events from redis")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}
			if e.Topic == "" {
				e.Topic = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			if err := b.local.Publish(ctx, e); err != nil {
				if errors.Is(err, ErrHubClosed) {
					return nil
				}
				b.log.Error().Err(err).Str("topic", e.Topic).Msg("local publish failed")
			}
		}
	}
}
