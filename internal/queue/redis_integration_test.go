//go:build integration

package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"classattendance/internal/logger"
	"classattendance/internal/pkg/testinfra"
	"classattendance/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := testinfra.Redis(t)
	q := queue.NewRedisQueue(client, "it:fires", logger.Discard())

	require.NoError(t, client.LPush(ctx, "it:fires", "garbage").Err())
	want := queue.Message{ID: "1", Type: queue.TypeSlotFired, Body: json.RawMessage(`{"slot_id":3}`), Attempt: 1}
	require.NoError(t, q.Publish(ctx, want))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case got := <-msgs:
		assert.Equal(t, want, got)
	case <-time.After(10 * time.Second):
		t.Fatal("message not consumed")
	}
}
