package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanQueueRoundTrip(t *testing.T) {
	q := NewChanQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, &VideoJob{ID: "a"}))
	require.NoError(t, q.Publish(ctx, &VideoJob{ID: "b"}))

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-deliveries
	second := <-deliveries
	assert.Equal(t, "a", first.Job.ID)
	assert.Equal(t, "b", second.Job.ID)
	first.Ack()
	second.Nack(false)
}

func TestChanQueueConsumeStopsOnCancel(t *testing.T) {
	q := NewChanQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consume channel did not close after cancel")
	}
}

func TestChanQueuePublishCancelled(t *testing.T) {
	q := NewChanQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Publish(ctx, &VideoJob{ID: "a"})
	require.ErrorIs(t, err, context.Canceled)
}
