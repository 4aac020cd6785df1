package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

// HTTP Handler Timeouts
const (
	// DefaultRequestTimeout is the default timeout for HTTP requests
	DefaultRequestTimeout = 30 * time.Second

	// BatchWriteTimeout is the timeout for batch write operations
	BatchWriteTimeout = 10 * time.Second

	// ShutdownTimeout bounds graceful shutdown of servers and workers
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Statistics Period Constants
// =============================================================================

// Period is a named statistics window ending now
type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

// Duration returns the window length of the period and whether it is known
func (p Period) Duration() (time.Duration, bool) {
	switch p {
	case Period24h:
		return 24 * time.Hour, true
	case Period7d:
		return 7 * 24 * time.Hour, true
	case Period30d:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default backoff duration between retries
	DefaultRetryBackoff = 100 * time.Millisecond
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultBatchSize is the default batch size for bulk operations
	DefaultBatchSize = 1000

	// DefaultListLimit is the default page size of GET /v1/readings
	DefaultListLimit = 100

	// MaxListLimit caps GET /v1/readings
	MaxListLimit = 10000
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// =============================================================================
// Store Type Constants
// =============================================================================

// StoreType represents the reading repository backend
type StoreType string

const (
	// StoreTypeMemory keeps readings in process (default)
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis keeps readings in a Redis sorted set
	StoreTypeRedis StoreType = "redis"

	// StoreTypePostgres keeps readings in a PostgreSQL table
	StoreTypePostgres StoreType = "postgres"

	// StoreTypeSQLite keeps readings in a SQLite file
	StoreTypeSQLite StoreType = "sqlite"

	// StoreTypeInfluxDB keeps readings in an InfluxDB v2 bucket
	StoreTypeInfluxDB StoreType = "influxdb"
)
