package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/utils"
)

// memoryChannelSize bounds the backlog of one subject
const memoryChannelSize = 10000

// MemoryQueue implements Queue with buffered channels. Used by tests and by
// single-process deployments that still want the ingest path decoupled.
type MemoryQueue struct {
	channels      map[string]chan []byte
	subscriptions map[string]context.CancelFunc
	logger        *logging.Logger
	closed        bool
	mu            sync.RWMutex
}

func newMemoryQueue(logger *logging.Logger) *MemoryQueue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MemoryQueue{
		channels:      make(map[string]chan []byte),
		subscriptions: make(map[string]context.CancelFunc),
		logger:        logger,
	}
}

func (q *MemoryQueue) channel(subject string) (chan []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if ch, exists := q.channels[subject]; exists {
		return ch, nil
	}
	ch := make(chan []byte, memoryChannelSize)
	q.channels[subject] = ch
	return ch, nil
}

// Publish enqueues a copy of data. It fails instead of blocking when the
// subject backlog is full.
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	ch, err := q.channel(subject)
	if err != nil {
		return err
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case ch <- dataCopy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// PublishBatch publishes messages one by one and counts the successes
func (q *MemoryQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	published := 0
	var lastErr error
	for _, msg := range messages {
		if err := q.Publish(ctx, msg.Subject, msg.Data); err != nil {
			lastErr = err
			continue
		}
		published++
	}
	if published == 0 && lastErr != nil {
		return 0, lastErr
	}
	return published, nil
}

// Subscribe consumes subject in a goroutine. A failed message is handed back
// to the handler up to utils.DefaultMaxRetries times, then dropped.
func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	ch, err := q.channel(subject)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.subscriptions[subject] = cancel

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				q.deliver(subject, data, handler)
			}
		}
	}()

	return nil
}

func (q *MemoryQueue) deliver(subject string, data []byte, handler MessageHandler) {
	var err error
	for attempt := 0; attempt < utils.DefaultMaxRetries; attempt++ {
		if err = handler(data); err == nil {
			return
		}
	}
	q.logger.Error("Dropping message after retries", "subject", subject, "attempts", utils.DefaultMaxRetries, "error", err)
}

// Unsubscribe stops the consumer of subject. Pending messages stay queued.
func (q *MemoryQueue) Unsubscribe(subject string) error {
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

// Close stops all consumers and drops pending messages. Later publishes fail
// with ErrQueueClosed.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	q.channels = make(map[string]chan []byte)
	q.closed = true
	return nil
}

// Pending returns the number of queued messages for subject
func (q *MemoryQueue) Pending(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, exists := q.channels[subject]; exists {
		return len(ch)
	}
	return 0
}
