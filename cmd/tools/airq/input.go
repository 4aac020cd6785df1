package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/store"
)

type globalOptions struct {
	InputFile  string
	ConfigFile string
	Now        string
	Pretty     bool
}

// session is the loaded input shared by the subcommands
type session struct {
	cfg      *config.Config
	repo     *store.MemoryStore
	now      time.Time
	logger   *logging.Logger
	readings int
}

func (o *globalOptions) load(ctx context.Context, stdin io.Reader) (*session, error) {
	cfg := config.DefaultConfig()
	if o.ConfigFile != "" {
		loaded, err := config.Load(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	data, err := readInput(o.InputFile, stdin)
	if err != nil {
		return nil, err
	}
	readings, err := decodeReadings(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", o.InputFile, err)
	}

	logger := logging.NewNop()
	repo := store.NewMemoryStore(0, len(readings)+1, logger)
	if _, err := repo.InsertReadings(ctx, readings); err != nil {
		return nil, err
	}

	now, err := resolveNow(o.Now, readings)
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, repo: repo, now: now, logger: logger, readings: len(readings)}, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeReadings accepts a JSON array of readings or {"readings": [...]}
func decodeReadings(data []byte) ([]models.Reading, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var readings []models.Reading
		if err := json.Unmarshal(data, &readings); err != nil {
			return nil, err
		}
		return readings, nil
	}

	var req models.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return req.Readings, nil
}

func resolveNow(value string, readings []models.Reading) (time.Time, error) {
	switch value {
	case "":
		return time.Now(), nil
	case "latest":
		var latest time.Time
		for _, r := range readings {
			if r.Timestamp.After(latest) {
				latest = r.Timestamp
			}
		}
		if latest.IsZero() {
			return time.Time{}, fmt.Errorf("--now latest needs at least one reading")
		}
		return latest, nil
	default:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("--now must be RFC3339 or 'latest': %w", err)
		}
		return t, nil
	}
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
