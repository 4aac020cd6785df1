package compression

import (
	"bytes"
	"errors"
	"testing"
)

func TestNoneCompressor_CompressDecompress(t *testing.T) {
	compressor := &NoneCompressor{}
	original := []byte(`[{"co2":412}]`)

	compressed, err := compressor.Compress(original)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !bytes.Equal(original, compressed) {
		t.Error("NoneCompressor should return data unchanged")
	}
	if compressor.Algorithm() != None {
		t.Errorf("Expected algorithm None, got %d", compressor.Algorithm())
	}
}

func TestGetCompressor(t *testing.T) {
	c, err := GetCompressor(Snappy)
	if err != nil || c.Algorithm() != Snappy {
		t.Errorf("Expected snappy compressor, got %v, %v", c, err)
	}

	if _, err := GetCompressor(Algorithm(99)); err == nil {
		t.Error("Expected error for unsupported algorithm")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		want    Algorithm
		wantErr bool
	}{
		{"snappy", Snappy, false},
		{"SNAPPY", Snappy, false},
		{"none", None, false},
		{"", None, false},
		{"zstd", None, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if Snappy.String() != "snappy" || None.String() != "none" {
		t.Error("Unexpected algorithm names")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"timestamp":"2025-01-01T00:00:00Z","co2":412.5},`), 50)

	for _, algo := range []Algorithm{None, Snappy} {
		t.Run(algo.String(), func(t *testing.T) {
			c, _ := GetCompressor(algo)
			frame, err := Frame(c, payload)
			if err != nil {
				t.Fatalf("Frame failed: %v", err)
			}
			if Algorithm(frame[0]) != algo {
				t.Errorf("Expected header %d, got %d", algo, frame[0])
			}

			out, err := Unframe(frame)
			if err != nil {
				t.Fatalf("Unframe failed: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Error("Round trip changed the payload")
			}
		})
	}
}

func TestUnframe_Invalid(t *testing.T) {
	if _, err := Unframe(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
	if _, err := Unframe([]byte{42, 1, 2}); err == nil {
		t.Error("Expected error for unknown algorithm header")
	}
	if _, err := Unframe([]byte{byte(Snappy), 0xff, 0xff, 0xff}); err == nil {
		t.Error("Expected error for corrupt snappy body")
	}
}
