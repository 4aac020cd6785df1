package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/utils"
)

const (
	redisReadCount  = 100
	redisReadBlock  = 5 * time.Second
	redisPayloadKey = "data"
)

// RedisConfig represents Redis Streams configuration
type RedisConfig struct {
	URL      string // redis://host:6379/0 or host:port
	Password string
	DB       int
	Stream   string // Stream key prefix (default: "airq")
	Group    string // Consumer group (default: "airq-group")
	Consumer string // Consumer name (default: hostname)
}

// RedisQueue implements Queue using Redis Streams and consumer groups
type RedisQueue struct {
	client        *redis.Client
	config        RedisConfig
	subscriptions map[string]context.CancelFunc
	logger        *logging.Logger
	wg            sync.WaitGroup
	mu            sync.RWMutex
}

func newRedisQueue(cfg RedisConfig, logger *logging.Logger) (*RedisQueue, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "airq"
	}
	if cfg.Group == "" {
		cfg.Group = "airq-group"
	}
	if cfg.Consumer == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "airq-ingestor"
		}
		cfg.Consumer = hostname
	}

	return &RedisQueue{
		client:        client,
		config:        cfg,
		subscriptions: make(map[string]context.CancelFunc),
		logger:        logger,
	}, nil
}

func (q *RedisQueue) streamName(subject string) string {
	return q.config.Stream + ":" + subject
}

func (q *RedisQueue) addArgs(subject string, data []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.streamName(subject),
		ID:     "*",
		Values: map[string]interface{}{redisPayloadKey: data},
	}
}

// Publish appends data to the subject stream
func (q *RedisQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := q.client.XAdd(ctx, q.addArgs(subject, data)).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", q.streamName(subject), err)
	}
	return nil
}

// PublishBatch appends all messages in one pipeline
func (q *RedisQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for _, msg := range messages {
		pipe.XAdd(ctx, q.addArgs(msg.Subject, msg.Data))
	}

	cmds, err := pipe.Exec(ctx)
	published := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			published++
		}
	}
	if err != nil && published == 0 {
		return 0, fmt.Errorf("failed to execute batch publish: %w", err)
	}
	return published, nil
}

// Subscribe joins the consumer group of the subject stream, creating both if
// needed, and reads new entries in a goroutine
func (q *RedisQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	stream := q.streamName(subject)
	ctx, cancel := context.WithCancel(context.Background())

	err := q.client.XGroupCreateMkStream(ctx, stream, q.config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	q.wg.Add(1)
	go q.readStream(ctx, stream, handler)

	q.subscriptions[subject] = cancel
	q.logger.Info("Subscribed to stream", "stream", stream, "group", q.config.Group, "consumer", q.config.Consumer)
	return nil
}

// readStream first retries one page of entries left pending by a previous
// run of this consumer, then reads new ones
func (q *RedisQueue) readStream(ctx context.Context, stream string, handler MessageHandler) {
	defer q.wg.Done()

	cursor := "0"
	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.config.Group,
			Consumer: q.config.Consumer,
			Streams:  []string{stream, cursor},
			Count:    redisReadCount,
			Block:    redisReadBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Warn("Failed to read Redis stream", "stream", stream, "error", err)
			time.Sleep(utils.DefaultRetryBackoff)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				q.handle(ctx, stream, msg, handler)
			}
		}
		cursor = ">"
	}
}

func (q *RedisQueue) handle(ctx context.Context, stream string, msg redis.XMessage, handler MessageHandler) {
	data, ok := msg.Values[redisPayloadKey].(string)
	if !ok {
		q.logger.Warn("Discarding stream entry without payload", "stream", stream, "id", msg.ID)
		q.ack(ctx, stream, msg.ID)
		return
	}

	if err := handler([]byte(data)); err != nil {
		// left pending, picked up again on the next restart of this consumer
		q.logger.Warn("Message handler failed", "stream", stream, "id", msg.ID, "error", err)
		return
	}
	q.ack(ctx, stream, msg.ID)
}

func (q *RedisQueue) ack(ctx context.Context, stream, id string) {
	if err := q.client.XAck(ctx, stream, q.config.Group, id).Err(); err != nil {
		q.logger.Warn("Failed to ack stream entry", "stream", stream, "id", id, "error", err)
	}
}

// Unsubscribe stops reading the subject stream
func (q *RedisQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	cancel()
	delete(q.subscriptions, subject)
	return nil
}

// Close stops all readers and closes the client
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return q.client.Close()
}
