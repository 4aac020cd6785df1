package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/utils"
)

// InfluxStore keeps readings as points of one measurement, one field per
// metric plus the reading ID
type InfluxStore struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	logger      *logging.Logger
}

func newInfluxStore(ctx context.Context, cfg config.InfluxStoreConfig, logger *logging.Logger) (*InfluxStore, error) {
	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(utils.DefaultBatchSize)).
		SetHTTPRequestTimeout(uint(utils.DefaultRequestTimeout / time.Second))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := client.Ping(pingCtx)
	if err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not ready")
		}
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "air_quality"
	}

	return &InfluxStore{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: measurement,
		logger:      logger,
	}, nil
}

// buildFluxQuery renders the Flux query for filter. Flux range stops are
// exclusive, so the upper bound is nudged forward by a nanosecond.
func buildFluxQuery(bucket, measurement string, filter Filter) string {
	start := "0"
	if filter.CreatedAfter != nil {
		start = filter.CreatedAfter.UTC().Format(time.RFC3339Nano)
	}
	stop := "now()"
	if filter.CreatedBefore != nil {
		stop = filter.CreatedBefore.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `from(bucket: %q)`, bucket)
	fmt.Fprintf(&b, "\n  |> range(start: %s, stop: %s)", start, stop)
	fmt.Fprintf(&b, "\n  |> filter(fn: (r) => r._measurement == %q)", measurement)
	b.WriteString("\n  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")")
	b.WriteString("\n  |> group()")
	b.WriteString("\n  |> sort(columns: [\"_time\"], desc: true)")
	if filter.Limit > 0 {
		fmt.Fprintf(&b, "\n  |> limit(n: %d)", filter.Limit)
	}
	return b.String()
}

// FetchReadings returns matching readings, newest first
func (s *InfluxStore) FetchReadings(ctx context.Context, filter Filter) ([]models.Reading, error) {
	result, err := s.queryAPI.Query(ctx, buildFluxQuery(s.bucket, s.measurement, filter))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer func() { _ = result.Close() }()

	var readings []models.Reading
	for result.Next() {
		record := result.Record()
		r := models.Reading{Timestamp: record.Time().UTC()}
		if id, ok := record.ValueByKey("id").(string); ok {
			r.ID = id
		}
		for _, m := range models.AllMetrics {
			if v, ok := utils.ToFloat64(record.ValueByKey(string(m))); ok {
				r.SetValue(m, v)
			}
		}
		readings = append(readings, r)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read query result: %w", result.Err())
	}
	return readings, nil
}

// toPoint converts a reading to an InfluxDB point
func toPoint(measurement string, r models.Reading) *write.Point {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	fields := map[string]interface{}{"id": id}
	for _, m := range models.AllMetrics {
		if v, ok := r.Value(m); ok {
			fields[string(m)] = v
		}
	}
	return influxdb2.NewPoint(measurement, nil, fields, r.Timestamp)
}

// InsertReadings writes readings with the blocking write API
func (s *InfluxStore) InsertReadings(ctx context.Context, readings []models.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	points := make([]*write.Point, len(readings))
	for i, r := range readings {
		points[i] = toPoint(s.measurement, r)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("failed to write readings: %w", err)
	}
	return len(points), nil
}

// Close closes the InfluxDB client
func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
