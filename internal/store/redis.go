package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
)

// RedisStore keeps readings as JSON members of a sorted set scored by
// timestamp in milliseconds
type RedisStore struct {
	client *redis.Client
	key    string
	logger *logging.Logger
}

func newRedisStore(ctx context.Context, cfg config.RedisStoreConfig, logger *logging.Logger) (*RedisStore, error) {
	// Parse URL or use defaults
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Fallback to simple options
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "airq:readings"
	}

	return &RedisStore{
		client: client,
		key:    key,
		logger: logger,
	}, nil
}

// FetchReadings returns matching readings, newest first
func (s *RedisStore) FetchReadings(ctx context.Context, filter Filter) ([]models.Reading, error) {
	args := redis.ZRangeArgs{
		Key:     s.key,
		Start:   "-inf",
		Stop:    "+inf",
		ByScore: true,
		Rev:     true,
	}
	if filter.CreatedAfter != nil {
		args.Start = strconv.FormatInt(filter.CreatedAfter.UnixMilli(), 10)
	}
	if filter.CreatedBefore != nil {
		args.Stop = strconv.FormatInt(filter.CreatedBefore.UnixMilli(), 10)
	}
	if filter.Limit > 0 {
		args.Count = int64(filter.Limit)
	}

	members, err := s.client.ZRangeArgs(ctx, args).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	readings := make([]models.Reading, 0, len(members))
	for _, m := range members {
		var r models.Reading
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			s.logger.Warn("Skipping undecodable reading", "key", s.key, "error", err)
			continue
		}
		// Scores are millisecond precision; drop sub-millisecond overshoot
		if !filter.Matches(r.Timestamp) {
			continue
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// InsertReadings adds readings to the sorted set in one pipeline
func (s *RedisStore) InsertReadings(ctx context.Context, readings []models.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	members := make([]redis.Z, 0, len(readings))
	for _, r := range readings {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		data, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("failed to encode reading: %w", err)
		}
		members = append(members, redis.Z{
			Score:  float64(r.Timestamp.UnixMilli()),
			Member: string(data),
		})
	}

	if err := s.client.ZAdd(ctx, s.key, members...).Err(); err != nil {
		return 0, fmt.Errorf("failed to insert readings: %w", err)
	}
	return len(members), nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
