package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")         // Current directory
		v.AddConfigPath("./configs") // Project configs directory
		v.AddConfigPath("./config")  // Alternative config directory
		v.AddConfigPath("/etc/airq") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. AIRQ_STORE_TYPE
	v.SetEnvPrefix("AIRQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)

	// Auth defaults
	v.SetDefault("auth.enabled", d.Auth.Enabled)

	// Store defaults
	v.SetDefault("store.type", d.Store.Type)
	v.SetDefault("store.query_timeout", d.Store.QueryTimeout)
	v.SetDefault("store.fetch_limit", d.Store.FetchLimit)
	v.SetDefault("store.memory.max_age", d.Store.Memory.MaxAge)
	v.SetDefault("store.memory.max_size", d.Store.Memory.MaxSize)
	v.SetDefault("store.redis.url", d.Store.Redis.URL)
	v.SetDefault("store.redis.key", d.Store.Redis.Key)
	v.SetDefault("store.postgres.table", d.Store.Postgres.Table)
	v.SetDefault("store.postgres.max_open_conns", d.Store.Postgres.MaxOpenConns)
	v.SetDefault("store.postgres.auto_migrate", d.Store.Postgres.AutoMigrate)
	v.SetDefault("store.sqlite.dsn", d.Store.SQLite.DSN)
	v.SetDefault("store.sqlite.table", d.Store.SQLite.Table)
	v.SetDefault("store.sqlite.max_open_conns", d.Store.SQLite.MaxOpenConns)
	v.SetDefault("store.sqlite.auto_migrate", d.Store.SQLite.AutoMigrate)
	v.SetDefault("store.influxdb.measurement", d.Store.InfluxDB.Measurement)

	// Queue defaults
	v.SetDefault("queue.enabled", d.Queue.Enabled)
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.subject", d.Queue.Subject)
	v.SetDefault("queue.compression", d.Queue.Compression)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)
	v.SetDefault("queue.redis_group", d.Queue.RedisGroup)
	v.SetDefault("queue.kafka_group_id", d.Queue.KafkaGroupID)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", d.MQTT.Enabled)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.topic", d.MQTT.Topic)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)
	v.SetDefault("mqtt.connect_timeout", d.MQTT.ConnectTimeout)

	// Ingest defaults
	v.SetDefault("ingest.max_batch_size", d.Ingest.MaxBatchSize)
	v.SetDefault("ingest.max_clock_skew", d.Ingest.MaxClockSkew)
	v.SetDefault("ingest.subscribe_to_mq", d.Ingest.SubscribeToMQ)

	// Analytics defaults
	v.SetDefault("analytics.timezone", d.Analytics.Timezone)
	v.SetDefault("analytics.sample_limit", d.Analytics.SampleLimit)
	v.SetDefault("analytics.lookback", d.Analytics.Lookback)
	v.SetDefault("analytics.step", d.Analytics.Step)
	v.SetDefault("analytics.horizon", d.Analytics.Horizon)

	// Metrics defaults
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			HTTPPort:     5555,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			BodyLimit:    4 * 1024 * 1024,
		},
		Store: StoreConfig{
			Type:         "memory",
			QueryTimeout: 10 * time.Second,
			FetchLimit:   0,
			Memory: MemoryStoreConfig{
				MaxAge:  31 * 24 * time.Hour,
				MaxSize: 500000,
			},
			Redis: RedisStoreConfig{
				URL: "localhost:6379",
				Key: "airq:readings",
			},
			Postgres: SQLStoreConfig{
				Table:        "readings",
				MaxOpenConns: 10,
				AutoMigrate:  true,
			},
			SQLite: SQLStoreConfig{
				DSN:          "./data/airq.db",
				Table:        "readings",
				MaxOpenConns: 1,
				AutoMigrate:  true,
			},
			InfluxDB: InfluxStoreConfig{
				Measurement: "air_quality",
			},
		},
		Queue: QueueConfig{
			Type:         "nats",
			URL:          "nats://localhost:4222",
			Subject:      "airq.readings",
			Compression:  "snappy",
			RedisStream:  "airq",
			RedisGroup:   "airq-group",
			KafkaGroupID: "airq-ingestor",
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://localhost:1883",
			Topic:          "airq/+/readings",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		},
		Ingest: IngestConfig{
			MaxBatchSize: 1000,
			MaxClockSkew: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Timezone:    "UTC",
			SampleLimit: 200,
			Lookback:    48 * time.Hour,
			Step:        2 * time.Hour,
			Horizon:     24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "airq",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
