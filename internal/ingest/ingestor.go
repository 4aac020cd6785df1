package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/queue"
	"github.com/airqlab/airq/internal/store"
	"github.com/airqlab/airq/internal/utils"
)

// Source labels where a batch came from
type Source string

const (
	SourceHTTP  Source = "http"
	SourceMQTT  Source = "mqtt"
	SourceQueue Source = "queue"
)

var (
	ErrEmptyBatch    = errors.New("batch contains no readings")
	ErrBatchTooLarge = errors.New("batch exceeds the maximum size")
	ErrNoValidData   = errors.New("no valid readings in batch")
)

// Result summarizes one submitted batch
type Result struct {
	Accepted int         `json:"accepted"`
	Queued   bool        `json:"queued"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// Options configures an Ingestor. Queue is optional: without it Submit writes
// to the repository directly and Run is unavailable.
type Options struct {
	Repository   store.ReadingRepository
	Queue        queue.Queue
	Codec        *queue.BatchCodec
	Subject      string
	Validator    *Validator
	MaxBatchSize int
	WriteTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
}

// Ingestor moves validated readings into the repository
type Ingestor struct {
	repo         store.ReadingRepository
	queue        queue.Queue
	codec        *queue.BatchCodec
	subject      string
	validator    *Validator
	maxBatchSize int
	writeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// New creates an Ingestor
func New(opts Options) (*Ingestor, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("ingest: repository is required")
	}
	if opts.Queue != nil && (opts.Codec == nil || opts.Subject == "") {
		return nil, fmt.Errorf("ingest: queue requires a codec and a subject")
	}
	if opts.Validator == nil {
		opts.Validator = NewValidator(5*time.Minute, nil)
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = utils.DefaultBatchSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = utils.BatchWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}

	return &Ingestor{
		repo:         opts.Repository,
		queue:        opts.Queue,
		codec:        opts.Codec,
		subject:      opts.Subject,
		validator:    opts.Validator,
		maxBatchSize: opts.MaxBatchSize,
		writeTimeout: opts.WriteTimeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With("component", "ingest"),
	}, nil
}

// Queued reports whether Submit publishes to the queue
func (i *Ingestor) Queued() bool {
	return i.queue != nil
}

// Submit validates readings and stores or enqueues the valid ones. Invalid
// readings are reported in the result; ErrNoValidData is returned when
// nothing was accepted.
func (i *Ingestor) Submit(ctx context.Context, source Source, readings []models.Reading) (*Result, error) {
	if len(readings) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(readings) > i.maxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(readings), i.maxBatchSize)
	}

	valid, rejected := i.validator.Partition(readings)
	i.metrics.CountIngest(string(source), 0, len(rejected))

	result := &Result{Rejected: rejected, Queued: i.queue != nil}
	if len(valid) == 0 {
		logging.CtxOr(ctx, i.logger).Warn("Rejected whole batch", "source", string(source), "rejected", len(rejected))
		return result, ErrNoValidData
	}

	if i.queue != nil {
		if err := i.publish(ctx, valid); err != nil {
			return nil, err
		}
		result.Accepted = len(valid)
	} else {
		n, err := i.insert(ctx, valid)
		if err != nil {
			return nil, err
		}
		result.Accepted = n
	}

	i.metrics.CountIngest(string(source), result.Accepted, 0)
	logging.CtxOr(ctx, i.logger).Debug("Batch ingested",
		"source", string(source), "accepted", result.Accepted, "rejected", len(rejected), "queued", result.Queued)
	return result, nil
}

func (i *Ingestor) insert(ctx context.Context, readings []models.Reading) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, i.writeTimeout)
	defer cancel()

	n, err := i.repo.InsertReadings(ctx, readings)
	if err != nil {
		return 0, fmt.Errorf("failed to insert readings: %w", err)
	}
	return n, nil
}

// publish splits readings into queue messages of at most
// utils.DefaultBatchSize readings each
func (i *Ingestor) publish(ctx context.Context, readings []models.Reading) error {
	var messages []queue.BatchMessage
	for start := 0; start < len(readings); start += utils.DefaultBatchSize {
		end := min(start+utils.DefaultBatchSize, len(readings))
		payload, err := i.codec.Encode(readings[start:end])
		if err != nil {
			return err
		}
		messages = append(messages, queue.BatchMessage{Subject: i.subject, Data: payload})
	}

	ctx, cancel := context.WithTimeout(ctx, i.writeTimeout)
	defer cancel()

	published, err := i.queue.PublishBatch(ctx, messages)
	if err != nil {
		i.metrics.CountQueue("failed")
		return fmt.Errorf("failed to publish readings: %w", err)
	}
	if published != len(messages) {
		i.metrics.CountQueue("failed")
		return fmt.Errorf("failed to publish readings: %d of %d batches acknowledged", published, len(messages))
	}
	for range messages {
		i.metrics.CountQueue("published")
	}
	return nil
}

// HandleMessage decodes one queue payload and inserts it. Readings were
// validated before publishing; they are checked again because other
// producers may share the subject.
func (i *Ingestor) HandleMessage(data []byte) error {
	readings, err := i.codec.Decode(data)
	if err != nil {
		// a malformed payload never decodes; acknowledge it instead of looping
		i.logger.Error("Discarding undecodable batch", "bytes", len(data), "error", err)
		i.metrics.CountQueue("failed")
		return nil
	}

	valid, rejected := i.validator.Partition(readings)
	if len(rejected) > 0 {
		i.logger.Warn("Dropping invalid queued readings", "rejected", len(rejected), "first_reason", rejected[0].Reason)
	}
	i.metrics.CountIngest(string(SourceQueue), 0, len(rejected))
	if len(valid) == 0 {
		i.metrics.CountQueue("consumed")
		return nil
	}

	n, err := i.insert(context.Background(), valid)
	if err != nil {
		i.logger.Warn("Failed to store queued batch", "readings", len(valid), "error", err)
		return err
	}

	i.metrics.CountQueue("consumed")
	i.metrics.CountIngest(string(SourceQueue), n, 0)
	return nil
}

// Run consumes the ingest subject until ctx is done
func (i *Ingestor) Run(ctx context.Context) error {
	if i.queue == nil {
		return fmt.Errorf("ingest: no queue configured")
	}

	if err := i.queue.Subscribe(i.subject, i.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", i.subject, err)
	}
	i.logger.Info("Ingest consumer started", "subject", i.subject)

	<-ctx.Done()

	if err := i.queue.Unsubscribe(i.subject); err != nil {
		i.logger.Warn("Failed to unsubscribe", "subject", i.subject, "error", err)
	}
	i.logger.Info("Ingest consumer stopped", "subject", i.subject)
	return nil
}
