package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EditResultChannel is the Redis channel edit outcomes travel on between replicas.
const EditResultChannel = "sitepilot:edit-results"

// RedisPublisher fans edit outcomes out to every replica. The worker that ran
// an edit is not necessarily the process holding the submitter's socket.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, channel: EditResultChannel}
}

func (p *RedisPublisher) PublishEditResult(ctx context.Context, result EditResultPayload) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode edit result: %w", err)
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

// Relay re-emits edit outcomes published by any replica on bus.
type Relay struct {
	sub  *redis.PubSub
	done chan struct{}
}

// StartRelay subscribes to EditResultChannel and returns once the subscription
// is confirmed, so no result published afterwards is missed.
func StartRelay(ctx context.Context, client *redis.Client, bus *EventBus) (*Relay, error) {
	sub := client.Subscribe(ctx, EditResultChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", EditResultChannel, err)
	}

	r := &Relay{sub: sub, done: make(chan struct{})}
	go r.run(bus)
	log.Info("Relaying edit results from %s", EditResultChannel)
	return r, nil
}

func (r *Relay) run(bus *EventBus) {
	defer close(r.done)
	for msg := range r.sub.Channel() {
		var result EditResultPayload
		if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
			log.Warn("Dropping malformed edit result: %v", err)
			continue
		}
		bus.Emit(EditResult, result)
	}
}

// Close unsubscribes and waits for the relay loop to exit.
func (r *Relay) Close() error {
	err := r.sub.Close()
	<-r.done
	return err
}
