package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Queue     QueueConfig     `mapstructure:"queue"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`          // Bind address for server (e.g., 0.0.0.0 for all interfaces)
	HTTPPort     int           `mapstructure:"http_port"`     // HTTP server port
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // Fiber read timeout
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // Fiber write timeout
	BodyLimit    int           `mapstructure:"body_limit"`    // Max request body in bytes
}

// StoreConfig selects and configures the reading repository backend
type StoreConfig struct {
	Type         string        `mapstructure:"type"`          // memory (default), redis, postgres, sqlite, influxdb
	QueryTimeout time.Duration `mapstructure:"query_timeout"` // Per-query timeout
	FetchLimit   int           `mapstructure:"fetch_limit"`   // Max readings in one statistics window (0 = unbounded)

	Memory   MemoryStoreConfig `mapstructure:"memory"`
	Redis    RedisStoreConfig  `mapstructure:"redis"`
	Postgres SQLStoreConfig    `mapstructure:"postgres"`
	SQLite   SQLStoreConfig    `mapstructure:"sqlite"`
	InfluxDB InfluxStoreConfig `mapstructure:"influxdb"`
}

// MemoryStoreConfig represents in-process store configuration
type MemoryStoreConfig struct {
	MaxAge  time.Duration `mapstructure:"max_age"`  // Readings older than this are evicted, 0 keeps everything
	MaxSize int           `mapstructure:"max_size"` // Max readings kept
}

// RedisStoreConfig represents the Redis sorted-set store
type RedisStoreConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"` // Sorted set key (default: "airq:readings")
}

// SQLStoreConfig represents a database/sql backed store
type SQLStoreConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"` // Create the table on startup
}

// InfluxStoreConfig represents the InfluxDB v2 store
type InfluxStoreConfig struct {
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	Org         string `mapstructure:"org"`
	Bucket      string `mapstructure:"bucket"`
	Measurement string `mapstructure:"measurement"`
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Enabled     bool   `mapstructure:"enabled"`     // Route ingested batches through the queue
	Type        string `mapstructure:"type"`        // Queue type: nats (default), redis, kafka, memory
	URL         string `mapstructure:"url"`         // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username    string `mapstructure:"username"`    // Optional authentication
	Password    string `mapstructure:"password"`    // Optional authentication
	Subject     string `mapstructure:"subject"`     // Subject/topic for reading batches (default: "airq.readings")
	Compression string `mapstructure:"compression"` // Payload compression: snappy (default), none

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "airq")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "airq-group")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID
}

// MQTTConfig represents the MQTT sensor listener
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`    // tcp://host:1883
	ClientID       string        `mapstructure:"client_id"` // Defaults to airq-<hostname>
	Topic          string        `mapstructure:"topic"`     // Subscription filter (default: "airq/+/readings")
	QoS            byte          `mapstructure:"qos"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// IngestConfig represents reading validation limits
type IngestConfig struct {
	MaxBatchSize  int           `mapstructure:"max_batch_size"`  // Max readings per request
	MaxClockSkew  time.Duration `mapstructure:"max_clock_skew"`  // Accepted future offset of a timestamp
	SubscribeToMQ bool          `mapstructure:"subscribe_to_mq"` // API process also consumes the queue
}

// AnalyticsConfig represents statistics and forecast settings
type AnalyticsConfig struct {
	Timezone    string                    `mapstructure:"timezone"`     // Timezone for response dates (e.g., "Asia/Tokyo", "+09:00", "UTC")
	SampleLimit int                       `mapstructure:"sample_limit"` // Most recent readings used for a forecast
	Lookback    time.Duration             `mapstructure:"lookback"`     // Forecast history window
	Step        time.Duration             `mapstructure:"step"`         // Spacing between forecast points
	Horizon     time.Duration             `mapstructure:"horizon"`      // Forecast horizon
	RiskBands   map[string]RiskBandConfig `mapstructure:"risk_bands"`   // Overrides per metric
}

// RiskBandConfig is the acceptable range of one metric. Min is optional.
type RiskBandConfig struct {
	Max float64  `mapstructure:"max"`
	Min *float64 `mapstructure:"min"`
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, UnixMs, etc
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}

	if err := c.Analytics.Validate(); err != nil {
		return fmt.Errorf("analytics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates store configuration
func (c *StoreConfig) Validate() error {
	if c.FetchLimit < 0 {
		return fmt.Errorf("fetch_limit must not be negative")
	}

	switch c.Type {
	case "", "memory":
		if c.Memory.MaxSize <= 0 {
			return fmt.Errorf("memory.max_size must be positive")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required")
		}
	case "sqlite":
		if c.SQLite.DSN == "" {
			return fmt.Errorf("sqlite.dsn is required")
		}
	case "influxdb":
		if c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "" || c.InfluxDB.Org == "" {
			return fmt.Errorf("influxdb.url, influxdb.org and influxdb.bucket are required")
		}
	default:
		return fmt.Errorf("unsupported store type: %s", c.Type)
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Subject == "" {
		return fmt.Errorf("queue.subject is required")
	}

	if c.Compression != "snappy" && c.Compression != "none" {
		return fmt.Errorf("queue.compression must be 'snappy' or 'none'")
	}

	return nil
}

// Validate validates MQTT configuration
func (c *MQTTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	if c.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	return nil
}

// Validate validates analytics configuration
func (c *AnalyticsConfig) Validate() error {
	if c.SampleLimit <= 0 {
		return fmt.Errorf("analytics.sample_limit must be positive")
	}

	if c.Lookback <= 0 {
		return fmt.Errorf("analytics.lookback must be positive")
	}

	if c.Step <= 0 || c.Horizon < c.Step {
		return fmt.Errorf("analytics.step must be positive and not exceed analytics.horizon")
	}

	if _, err := c.LoadTimezone(); err != nil {
		return fmt.Errorf("analytics.timezone: %w", err)
	}

	for name, band := range c.RiskBands {
		if band.Min != nil && *band.Min > band.Max {
			return fmt.Errorf("analytics.risk_bands.%s: min exceeds max", name)
		}
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
