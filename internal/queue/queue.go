// Package queue carries reading batches between the API, the MQTT listener and
// the ingest worker. Every backend delivers at least once, so handlers must be
// idempotent; the stores skip readings whose ID they already hold.
package queue

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned by operations on a closed queue
var ErrQueueClosed = errors.New("queue: closed")

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishBatch publishes multiple messages and waits for all to complete.
	// Returns the number of successfully published messages.
	PublishBatch(ctx context.Context, messages []BatchMessage) (int, error)

	Close() error
}

// BatchMessage is one message of a PublishBatch call
type BatchMessage struct {
	Subject string
	Data    []byte
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe registers handler for subject. A handler error leaves the
	// message unacknowledged so the backend can redeliver it.
	Subscribe(subject string, handler MessageHandler) error

	Unsubscribe(subject string) error

	Close() error
}

// MessageHandler handles incoming messages
type MessageHandler func(data []byte) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}
