package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/shared/config"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverNone     = "none"
	DriverKafka    = "kafka"
	DriverRabbitMQ = "rabbitmq"
)

type BillingConfig struct {
	config.CommonConfig `mapstructure:",squash"` // database, redis, kafka and rabbitmq sections

	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Billing   BillingSettings `mapstructure:"billing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StorageConfig picks the persistence backend. memory is for local runs and demos.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BillingSettings struct {
	Timezone           string        `mapstructure:"timezone"`
	Currency           string        `mapstructure:"currency"`
	FinalizeRateLimit  int           `mapstructure:"finalize_rate_limit"`
	FinalizeRateWindow time.Duration `mapstructure:"finalize_rate_window"`
}

type RateLimitConfig struct {
	Driver string `mapstructure:"driver"`
}

type EventsConfig struct {
	Driver string `mapstructure:"driver"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AuditConfig struct {
	Persist bool `mapstructure:"persist"`
}

// Location resolves the configured billing timezone.
func (b BillingSettings) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

// LoadConfig loads the billing service configuration from an optional
// config.yaml under path (or the working directory) and the environment.
// DATABASE_HOST overrides database.host and so on.
func LoadConfig(path string) (*BillingConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config.SetCommonDefaults(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg BillingConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("billing.timezone", "UTC")
	v.SetDefault("billing.currency", "EUR")
	v.SetDefault("billing.finalize_rate_limit", 10)
	v.SetDefault("billing.finalize_rate_window", time.Minute)

	v.SetDefault("rate_limit.driver", DriverMemory)
	v.SetDefault("events.driver", DriverNone)
	v.SetDefault("kafka.topic", "billing.invoice-events")
	v.SetDefault("rabbitmq.queue", "billing.invoice-events")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("audit.persist", true)
}

// Validate rejects settings the service cannot start with.
func (c *BillingConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.RateLimit.Driver {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown rate_limit driver %q", c.RateLimit.Driver)
	}
	switch c.Events.Driver {
	case DriverNone:
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("kafka brokers and topic must be specified")
		}
	case DriverRabbitMQ:
		if c.RabbitMQ.Queue == "" {
			return fmt.Errorf("rabbitmq queue must be specified")
		}
	default:
		return fmt.Errorf("unknown events driver %q", c.Events.Driver)
	}
	if c.Billing.FinalizeRateLimit <= 0 {
		return fmt.Errorf("finalize_rate_limit must be positive")
	}
	if c.Billing.FinalizeRateWindow <= 0 {
		return fmt.Errorf("finalize_rate_window must be positive")
	}
	if _, err := c.Billing.Location(); err != nil {
		return fmt.Errorf("invalid billing timezone %q: %w", c.Billing.Timezone, err)
	}
	if len(c.Billing.Currency) != 3 || strings.ToUpper(c.Billing.Currency) != c.Billing.Currency {
		return fmt.Errorf("billing currency must be a 3 letter upper case code")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /")
	}
	return nil
}
