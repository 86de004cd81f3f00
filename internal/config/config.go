package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from YAML with
// environment overrides for the deployment-specific values.
type Config struct {
	Server struct {
		Port        int `yaml:"port" validate:"required,min=1,max=65535"`
		MetricsPort int `yaml:"metrics_port" validate:"omitempty,min=1,max=65535"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host" validate:"required"`
		Port     int    `yaml:"port" validate:"required"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password"`
		Name     string `yaml:"database" validate:"required"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host" validate:"required"`
		Port     int    `yaml:"port" validate:"required"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr     string `yaml:"addr" validate:"required"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
	} `yaml:"redis"`

	JWT struct {
		SecretKey      string `yaml:"secret_key" validate:"required,min=16"`
		AccessTTLHours int    `yaml:"access_ttl_hours" validate:"min=0"`
	} `yaml:"jwt"`

	Tracking struct {
		// IdleTimeoutSeconds is the silence window after which subscribers
		// receive a busOffline event for an active trip.
		IdleTimeoutSeconds int `yaml:"idle_timeout_seconds" validate:"min=0"`
		// QueueCapacity bounds the client-side offline sample queue.
		QueueCapacity            int `yaml:"queue_capacity" validate:"min=0"`
		ReconnectInitialDelayMS  int `yaml:"reconnect_initial_delay_ms" validate:"min=0"`
		ReconnectMaxDelayMS      int `yaml:"reconnect_max_delay_ms" validate:"min=0"`
		HandshakeTimeoutSeconds  int `yaml:"handshake_timeout_seconds" validate:"min=0"`
		RestFallbackMaxAttempts  int `yaml:"rest_fallback_max_attempts" validate:"min=0"`
		RestFallbackRetryDelayMS int `yaml:"rest_fallback_retry_delay_ms" validate:"min=0"`
	} `yaml:"tracking"`
}

// Load reads the YAML file, overlays .env / environment variables, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional; real env vars still win below
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideStr(&cfg.Database.Host, "BUSTRACK_DB_HOST")
	overrideInt(&cfg.Database.Port, "BUSTRACK_DB_PORT")
	overrideStr(&cfg.Database.User, "BUSTRACK_DB_USER")
	overrideStr(&cfg.Database.Password, "BUSTRACK_DB_PASSWORD")
	overrideStr(&cfg.Database.Name, "BUSTRACK_DB_NAME")
	overrideStr(&cfg.RabbitMQ.Host, "BUSTRACK_RMQ_HOST")
	overrideInt(&cfg.RabbitMQ.Port, "BUSTRACK_RMQ_PORT")
	overrideStr(&cfg.RabbitMQ.User, "BUSTRACK_RMQ_USER")
	overrideStr(&cfg.RabbitMQ.Password, "BUSTRACK_RMQ_PASSWORD")
	overrideStr(&cfg.Redis.Addr, "BUSTRACK_REDIS_ADDR")
	overrideStr(&cfg.Redis.Password, "BUSTRACK_REDIS_PASSWORD")
	overrideStr(&cfg.JWT.SecretKey, "BUSTRACK_JWT_SECRET")
	overrideInt(&cfg.Server.Port, "BUSTRACK_PORT")
	overrideInt(&cfg.Server.MetricsPort, "BUSTRACK_METRICS_PORT")
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.JWT.AccessTTLHours == 0 {
		cfg.JWT.AccessTTLHours = 2
	}
	if cfg.Tracking.IdleTimeoutSeconds == 0 {
		cfg.Tracking.IdleTimeoutSeconds = 45
	}
	if cfg.Tracking.QueueCapacity == 0 {
		cfg.Tracking.QueueCapacity = 30
	}
	if cfg.Tracking.ReconnectInitialDelayMS == 0 {
		cfg.Tracking.ReconnectInitialDelayMS = 1000
	}
	if cfg.Tracking.ReconnectMaxDelayMS == 0 {
		cfg.Tracking.ReconnectMaxDelayMS = 5000
	}
	if cfg.Tracking.HandshakeTimeoutSeconds == 0 {
		cfg.Tracking.HandshakeTimeoutSeconds = 20
	}
	if cfg.Tracking.RestFallbackMaxAttempts == 0 {
		cfg.Tracking.RestFallbackMaxAttempts = 3
	}
	if cfg.Tracking.RestFallbackRetryDelayMS == 0 {
		cfg.Tracking.RestFallbackRetryDelayMS = 2000
	}
}

// IdleTimeout returns the watchdog window as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Tracking.IdleTimeoutSeconds) * time.Second
}

// AccessTTL returns the JWT access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.AccessTTLHours) * time.Hour
}

func overrideStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
