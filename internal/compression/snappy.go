package compression

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// MaxDecodedSize bounds the decoded size of a single queue payload.
// A batch of readings never gets close; anything larger is corrupt or hostile.
const MaxDecodedSize = 16 << 20

// ErrPayloadTooLarge is returned when a snappy block claims a decoded size
// above the configured limit
var ErrPayloadTooLarge = errors.New("compression: decoded payload too large")

// SnappyCompressor encodes reading batches as snappy blocks
type SnappyCompressor struct {
	maxDecoded int
}

func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{maxDecoded: MaxDecodedSize}
}

// WithMaxDecodedSize overrides the decode limit. Values <= 0 disable it.
func (s *SnappyCompressor) WithMaxDecodedSize(n int) *SnappyCompressor {
	s.maxDecoded = n
	return s
}

func (s *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return snappy.Encode(nil, data), nil
}

// Decompress checks the block header before allocating the output buffer
func (s *SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy header: %w", err)
	}
	if s.maxDecoded > 0 && n > s.maxDecoded {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, n, s.maxDecoded)
	}

	out, err := snappy.Decode(make([]byte, n), data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

func (s *SnappyCompressor) Algorithm() Algorithm {
	return Snappy
}
