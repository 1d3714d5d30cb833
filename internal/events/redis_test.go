package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayReemitsPublishedResults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewEventBus()
	got := make(chan EditResultPayload, 2)
	bus.On(EditResult, func(data interface{}) { got <- data.(EditResultPayload) })

	relay, err := StartRelay(context.Background(), client, bus)
	require.NoError(t, err)

	// Garbage on the channel is skipped, not fatal.
	require.NoError(t, client.Publish(context.Background(), EditResultChannel, "not json").Err())
	pub := NewRedisPublisher(client)
	require.NoError(t, pub.PublishEditResult(context.Background(), EditResultPayload{
		Room: "s-1", EditID: "e-1", Success: false, Message: "Access denied",
	}))

	select {
	case r := <-got:
		assert.Equal(t, "s-1", r.Room)
		assert.Equal(t, "e-1", r.EditID)
		assert.False(t, r.Success)
		assert.Equal(t, "Access denied", r.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not re-emit the result")
	}

	require.NoError(t, relay.Close())
}

func TestBusPublishesLocally(t *testing.T) {
	bus := NewEventBus()
	got := make(chan EditResultPayload, 1)
	bus.On(EditResult, func(data interface{}) { got <- data.(EditResultPayload) })

	var pub ResultPublisher = bus
	require.NoError(t, pub.PublishEditResult(context.Background(), EditResultPayload{EditID: "e-2"}))
	bus.Wait()
	assert.Equal(t, "e-2", (<-got).EditID)
}
