package queue

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airqlab/airq/internal/utils"
)

func TestNewKafkaQueue_Defaults(t *testing.T) {
	q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	assert.Equal(t, "airq-ingestor", q.config.GroupID)
	assert.Equal(t, 100, q.config.BatchSize)
	assert.Equal(t, utils.DefaultMaxRetries, q.config.MaxAttempts)
	assert.Equal(t, utils.DefaultRetryBackoff, q.config.RetryBackoff)
}

func TestNewKafkaQueue_NoBrokers(t *testing.T) {
	_, err := newKafkaQueue(KafkaConfig{}, nil)
	assert.Error(t, err)
}

func TestKafkaQueue_WriterPerTopic(t *testing.T) {
	q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	w1 := q.writer("airq.readings")
	w2 := q.writer("airq.readings")
	w3 := q.writer("airq.other")

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, w3)
	assert.Equal(t, "airq.readings", w1.Topic)
}

func TestKafkaTopic(t *testing.T) {
	assert.Equal(t, "airq.readings", kafkaTopic("airq.readings"))
	assert.Equal(t, "airq.s1.readings", kafkaTopic("airq/s1/readings"))
}

func TestKafkaQueue_Integration(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping Kafka integration test")
	}

	q, err := newKafkaQueue(KafkaConfig{Brokers: strings.Split(brokers, ","), GroupID: "airq-test"}, nil)
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	topic := "airq.test." + time.Now().Format("150405")
	var count atomic.Int32
	require.NoError(t, q.Subscribe(topic, func([]byte) error { count.Add(1); return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, q.Publish(ctx, topic, []byte("batch")))

	waitFor(t, 30*time.Second, func() bool { return count.Load() == 1 })
}
