package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisWakeQueue keeps wake registrations in a redis list so they survive
// restarts of either the API or the agent.
type RedisWakeQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

var _ domain.WakeQueue = (*RedisWakeQueue)(nil)

func NewRedisWakeQueue(client *redis.Client, key string) *RedisWakeQueue {
	return &RedisWakeQueue{client: client, key: key, pollTimeout: time.Second}
}

func (q *RedisWakeQueue) Request(ctx context.Context, tag models.WakeTag) error {
	if !tag.Valid() {
		return fmt.Errorf("unknown wake tag %q", tag)
	}
	if err := q.client.LPush(ctx, q.key, string(tag)).Err(); err != nil {
		return fmt.Errorf("push wake tag: %w", err)
	}
	return nil
}

// Next blocks until a wake tag is available or ctx is done. Unknown tags are
// dropped.
func (q *RedisWakeQueue) Next(ctx context.Context) (models.WakeTag, error) {
	for {
		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", fmt.Errorf("pop wake tag: %w", err)
		}
		if len(res) != 2 {
			continue
		}
		if tag := models.WakeTag(res[1]); tag.Valid() {
			return tag, nil
		}
	}
}

// ChanWakeQueue is the in-process fallback when redis is not configured.
// Requests beyond the buffer are coalesced into the ones already waiting.
type ChanWakeQueue struct {
	ch chan models.WakeTag
}

var _ domain.WakeQueue = (*ChanWakeQueue)(nil)

func NewChanWakeQueue(buffer int) *ChanWakeQueue {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanWakeQueue{ch: make(chan models.WakeTag, buffer)}
}

func (q *ChanWakeQueue) Request(_ context.Context, tag models.WakeTag) error {
	if !tag.Valid() {
		return fmt.Errorf("unknown wake tag %q", tag)
	}
	select {
	case q.ch <- tag:
	default:
	}
	return nil
}

func (q *ChanWakeQueue) Next(ctx context.Context) (models.WakeTag, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case tag := <-q.ch:
		return tag, nil
	}
}
