package events

import (
	"context"
	"encoding/json"
	"fmt"

	"flightbook/internal/domain"
	"flightbook/internal/logging"
	"flightbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster fans SYNC_COMPLETE out to every process subscribed to the
// channel.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

var _ domain.Broadcaster = (*RedisBroadcaster)(nil)

func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

func (r *RedisBroadcaster) Broadcast(ctx context.Context, msg models.SyncCompleteMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish sync message: %w", err)
	}
	return nil
}

// RelayToBus republishes every broadcast received on channel onto bus until
// ctx is done. ready is closed once the subscription is confirmed.
func RelayToBus(ctx context.Context, client *redis.Client, channel string, bus *EventBus, logger *zerolog.Logger, ready chan<- struct{}) error {
	log := logging.Component(logger, "event_relay")

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	if ready != nil {
		close(ready)
	}
	log.Info().Str("channel", channel).Msg("relaying sync events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg models.SyncCompleteMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil || msg.Type != models.MessageSyncComplete {
				log.Warn().Str("payload", m.Payload).Msg("ignoring malformed sync event")
				continue
			}
			if err := bus.Broadcast(ctx, msg); err != nil {
				log.Warn().Err(err).Msg("failed to republish sync event")
			}
		}
	}
}
