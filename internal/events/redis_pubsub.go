package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// historySize is how many recent events are kept per stream for clients
// that connect late.
const historySize = 200

func historyKey(stream string) string {
	return stream + ":history"
}

// RedisPublisher publishes on a Redis channel and keeps a short history list
// next to it.
type RedisPublisher struct {
	client redis.UniversalClient
	log    *zap.Logger
}

func NewRedisPublisher(client redis.UniversalClient, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, stream, data)
		pipe.LPush(ctx, historyKey(stream), data)
		pipe.LTrim(ctx, historyKey(stream), 0, historySize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, stream, err)
	}
	return nil
}

// Recent returns up to n of the latest events on stream, oldest first.
func (p *RedisPublisher) Recent(ctx context.Context, stream string, n int) ([]Event, error) {
	if n <= 0 || n > historySize {
		n = historySize
	}
	raw, err := p.client.LRange(ctx, historyKey(stream), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var ev Event
		if err := json.Unmarshal([]byte(raw[i]), &ev); err != nil {
			p.log.Warn("skipping malformed event in history", zap.String("stream", stream), zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

type RedisSubscriber struct {
	client redis.UniversalClient
	log    *zap.Logger
}

func NewRedisSubscriber(client redis.UniversalClient, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

// Subscribe returns once the subscription is confirmed and then feeds handler
// from a background goroutine until ctx is done.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", stream, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("failed to unmarshal event", zap.String("stream", stream), zap.Error(err))
					continue
				}
				handler(event)
			}
		}
	}()

	return nil
}
