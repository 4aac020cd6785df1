package ingest

import (
	"context"
	"fmt"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/queue"
	"github.com/airqlab/airq/internal/store"
)

// Pipeline is the ingest side of a process: the Ingestor plus the optional
// queue connection and MQTT listener it was configured with
type Pipeline struct {
	Ingestor *Ingestor
	Queue    queue.Queue
	MQTT     *MQTTListener

	logger *logging.Logger
}

// NewPipeline builds the ingest components described by cfg. The queue is
// connected when cfg.Queue.Enabled; the MQTT listener is created (not
// started) when cfg.MQTT.Enabled.
func NewPipeline(cfg *config.Config, repo store.ReadingRepository, m *metrics.Metrics, logger *logging.Logger) (*Pipeline, error) {
	p := &Pipeline{logger: logger}

	opts := Options{
		Repository:   repo,
		Validator:    NewValidator(cfg.Ingest.MaxClockSkew, nil),
		MaxBatchSize: cfg.Ingest.MaxBatchSize,
		WriteTimeout: cfg.Store.QueryTimeout,
		Metrics:      m,
		Logger:       logger,
	}

	if cfg.Queue.Enabled {
		codec, err := queue.NewBatchCodec(cfg.Queue.Compression)
		if err != nil {
			return nil, err
		}

		logger.Info("Connecting to queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
		q, err := queue.NewQueue(cfg.Queue, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to queue: %w", err)
		}
		p.Queue = q

		opts.Queue = q
		opts.Codec = codec
		opts.Subject = cfg.Queue.Subject
	}

	ingestor, err := New(opts)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Ingestor = ingestor

	if cfg.MQTT.Enabled {
		p.MQTT = NewMQTTListener(cfg.MQTT, ingestor, logger)
	}

	return p, nil
}

// Start launches the queue consumer (when consume is set and a queue is
// configured) and the MQTT listener. The consumer stops when ctx is done.
func (p *Pipeline) Start(ctx context.Context, consume bool) error {
	if consume && p.Queue != nil {
		go func() {
			if err := p.Ingestor.Run(ctx); err != nil {
				p.logger.Error("Ingest consumer failed", "error", err)
			}
		}()
	}

	if p.MQTT != nil {
		if err := p.MQTT.Start(); err != nil {
			return fmt.Errorf("failed to start mqtt listener: %w", err)
		}
	}
	return nil
}

// Close stops the MQTT listener and closes the queue connection
func (p *Pipeline) Close() {
	if p.MQTT != nil {
		p.MQTT.Stop()
	}
	if p.Queue != nil {
		if err := p.Queue.Close(); err != nil {
			p.logger.Warn("Failed to close queue", "error", err)
		}
	}
}
