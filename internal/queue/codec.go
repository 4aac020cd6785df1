package queue

import (
	"encoding/json"
	"fmt"

	"github.com/airqlab/airq/internal/compression"
	"github.com/airqlab/airq/internal/models"
)

// BatchCodec turns reading batches into queue payloads: a JSON array framed
// by internal/compression. Decoding honours the frame header, so a consumer
// reads batches from publishers with any compression setting.
type BatchCodec struct {
	compressor compression.Compressor
}

// NewBatchCodec creates a codec that compresses with the named algorithm
// ("snappy" or "none")
func NewBatchCodec(algorithm string) (*BatchCodec, error) {
	algo, err := compression.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	c, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	return &BatchCodec{compressor: c}, nil
}

// Encode serializes a batch
func (c *BatchCodec) Encode(readings []models.Reading) ([]byte, error) {
	data, err := json.Marshal(readings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reading batch: %w", err)
	}
	return compression.Frame(c.compressor, data)
}

// Decode parses a payload produced by Encode
func (c *BatchCodec) Decode(payload []byte) ([]models.Reading, error) {
	data, err := compression.Unframe(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to unframe reading batch: %w", err)
	}
	var readings []models.Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading batch: %w", err)
	}
	return readings, nil
}
