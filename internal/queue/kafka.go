package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/utils"
)

// KafkaConfig represents Apache Kafka configuration
type KafkaConfig struct {
	Brokers      []string
	GroupID      string        // Consumer group (default: "airq-ingestor")
	BatchSize    int           // Producer batch size (default: 100)
	BatchTimeout time.Duration // Producer flush interval (default: 10ms)
	MaxAttempts  int           // Producer and commit attempts (default: utils.DefaultMaxRetries)
	RetryBackoff time.Duration // Pause between commit attempts
}

// KafkaQueue implements Queue with one writer per topic and one consumer
// group reader per subscription. Offsets are committed only after the
// handler succeeds.
type KafkaQueue struct {
	config        KafkaConfig
	writers       map[string]*kafka.Writer
	readers       map[string]*kafka.Reader
	subscriptions map[string]context.CancelFunc
	logger        *logging.Logger
	wg            sync.WaitGroup
	mu            sync.RWMutex
}

func newKafkaQueue(cfg KafkaConfig, logger *logging.Logger) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if cfg.GroupID == "" {
		cfg.GroupID = "airq-ingestor"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = utils.DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = utils.DefaultRetryBackoff
	}

	return &KafkaQueue{
		config:        cfg,
		writers:       make(map[string]*kafka.Writer),
		readers:       make(map[string]*kafka.Reader),
		subscriptions: make(map[string]context.CancelFunc),
		logger:        logger,
	}, nil
}

// kafkaTopic maps a dotted subject to a topic name
func kafkaTopic(subject string) string {
	return strings.ReplaceAll(subject, "/", ".")
}

func (q *KafkaQueue) writer(topic string) *kafka.Writer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if w, exists := q.writers[topic]; exists {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(q.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              q.config.BatchSize,
		BatchTimeout:           q.config.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            q.config.MaxAttempts,
		AllowAutoTopicCreation: true,
	}
	q.writers[topic] = w
	return w
}

// Publish writes one message to the subject topic
func (q *KafkaQueue) Publish(ctx context.Context, subject string, data []byte) error {
	topic := kafkaTopic(subject)
	if err := q.writer(topic).WriteMessages(ctx, kafka.Message{Value: data, Time: time.Now()}); err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", topic, err)
	}
	return nil
}

// PublishBatch groups messages by topic and writes each group in one call
func (q *KafkaQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	byTopic := make(map[string][]kafka.Message)
	now := time.Now()
	for _, msg := range messages {
		topic := kafkaTopic(msg.Subject)
		byTopic[topic] = append(byTopic[topic], kafka.Message{Value: msg.Data, Time: now})
	}

	published := 0
	var lastErr error
	for topic, msgs := range byTopic {
		if err := q.writer(topic).WriteMessages(ctx, msgs...); err != nil {
			q.logger.Warn("Failed to write kafka batch", "topic", topic, "messages", len(msgs), "error", err)
			lastErr = err
			continue
		}
		published += len(msgs)
	}

	if lastErr != nil && published == 0 {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return published, nil
}

// Subscribe starts a consumer group reader for the subject topic
func (q *KafkaQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.config.Brokers,
		GroupID:  q.config.GroupID,
		Topic:    kafkaTopic(subject),
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.readers[subject] = reader
	q.subscriptions[subject] = cancel

	q.wg.Add(1)
	go q.consume(ctx, reader, handler)

	q.logger.Info("Subscribed to topic", "topic", kafkaTopic(subject), "group", q.config.GroupID)
	return nil
}

// consume fetches messages and commits each one after the handler succeeds.
// A failing message is retried MaxAttempts times, then skipped so one bad
// batch cannot stall the partition.
func (q *KafkaQueue) consume(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	defer q.wg.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			q.logger.Warn("Failed to fetch kafka message", "topic", reader.Config().Topic, "error", err)
			time.Sleep(q.config.RetryBackoff)
			continue
		}

		var handlerErr error
		for attempt := 0; attempt < q.config.MaxAttempts; attempt++ {
			if handlerErr = handler(msg.Value); handlerErr == nil {
				break
			}
		}
		if handlerErr != nil {
			q.logger.Error("Skipping kafka message after retries",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", handlerErr)
		}

		q.commit(ctx, reader, msg)
	}
}

func (q *KafkaQueue) commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	for attempt := 0; attempt < q.config.MaxAttempts; attempt++ {
		err := reader.CommitMessages(ctx, msg)
		if err == nil || ctx.Err() != nil {
			return
		}
		q.logger.Warn("Failed to commit kafka offset", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		time.Sleep(q.config.RetryBackoff)
	}
}

// Unsubscribe stops the reader of subject
func (q *KafkaQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}

	cancel()
	if reader, ok := q.readers[subject]; ok {
		_ = reader.Close()
		delete(q.readers, subject)
	}
	delete(q.subscriptions, subject)
	return nil
}

// Close stops all readers and flushes all writers
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	var lastErr error
	for subject, cancel := range q.subscriptions {
		cancel()
		if reader, ok := q.readers[subject]; ok {
			if err := reader.Close(); err != nil {
				lastErr = err
			}
		}
		delete(q.subscriptions, subject)
		delete(q.readers, subject)
	}
	for topic, w := range q.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
		delete(q.writers, topic)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return lastErr
}
