package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	if !isRedisAvailable() {
		t.Skip("Redis not available, skipping test")
	}

	prefix := fmt.Sprintf("airq-test-%d", time.Now().UnixNano())
	q, err := newRedisQueue(RedisConfig{URL: getRedisURL(), Stream: prefix, Group: "test-group"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		keys, _ := q.client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			q.client.Del(context.Background(), keys...)
		}
		_ = q.Close()
	})
	return q
}

func TestRedisQueue_Defaults(t *testing.T) {
	q := newTestRedisQueue(t)
	assert.NotEmpty(t, q.config.Consumer)
	assert.Equal(t, q.config.Stream+":airq.readings", q.streamName("airq.readings"))
}

func TestRedisQueue_PublishSubscribe(t *testing.T) {
	q := newTestRedisQueue(t)

	var count atomic.Int32
	require.NoError(t, q.Subscribe("airq.readings", func(data []byte) error {
		if string(data) == "batch" {
			count.Add(1)
		}
		return nil
	}))

	n, err := q.PublishBatch(context.Background(), []BatchMessage{
		{Subject: "airq.readings", Data: []byte("batch")},
		{Subject: "airq.readings", Data: []byte("batch")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	waitFor(t, 10*time.Second, func() bool { return count.Load() == 2 })
}

func TestRedisQueue_FailedMessageStaysPending(t *testing.T) {
	q := newTestRedisQueue(t)
	stream := q.streamName("airq.pending")

	var attempts atomic.Int32
	require.NoError(t, q.Subscribe("airq.pending", func([]byte) error {
		attempts.Add(1)
		return errors.New("store unavailable")
	}))
	require.NoError(t, q.Publish(context.Background(), "airq.pending", []byte("x")))

	waitFor(t, 10*time.Second, func() bool { return attempts.Load() == 1 })

	pending, err := q.client.XPending(context.Background(), stream, q.config.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestRedisQueue_ConnectionFailure(t *testing.T) {
	_, err := newRedisQueue(RedisConfig{URL: "redis://127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
