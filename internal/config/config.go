package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the correlator service
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Migrations  MigrationsConfig  `mapstructure:"migrations"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Correlation CorrelationSource `mapstructure:"correlation"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds the postgres:// URL understood by pgx and golang-migrate
func (p PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

// MigrationsConfig points at the SQL migration directory
type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

// SourceURL returns the golang-migrate source URL for the directory
func (m MigrationsConfig) SourceURL() string {
	if strings.Contains(m.Path, "://") {
		return m.Path
	}
	return "file://" + m.Path
}

// RedisConfig holds Redis settings for the per-dataset run lock
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	Enabled bool          `mapstructure:"enabled"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	Enabled      bool          `mapstructure:"enabled"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NotifyConfig selects the notification sink: nats, kafka or none
type NotifyConfig struct {
	Driver string `mapstructure:"driver"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// WorkerConfig holds the job subscription settings
type WorkerConfig struct {
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

// CorrelationSource locates the rule tuning file
type CorrelationSource struct {
	ConfigPath string `mapstructure:"config_path"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "telhawk")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "telhawk_correlator")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("migrations.path", "migrations")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.lock_ttl", "15m")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "telhawk-correlator")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "telhawk.correlator.incidents")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.write_timeout", "10s")

	v.SetDefault("notify.driver", "nats")

	v.SetDefault("metrics.addr", ":9095")
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("worker.subject", "correlate.jobs.dataset")
	v.SetDefault("worker.queue", "correlate-workers")

	v.SetDefault("correlation.config_path", DefaultCorrelationConfigPath)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	v.SetEnvPrefix("CORRELATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("correlation.config_path", "CORRELATOR_CORRELATION_CONFIG_PATH", "CORRELATION_CONFIG_PATH"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
