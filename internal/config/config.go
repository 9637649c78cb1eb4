package config

import (
	"errors"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxMessageLength   int           `mapstructure:"max_message_length" yaml:"max_message_length"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	Database Database `mapstructure:"database" yaml:"database"`
	JWT      JWT      `mapstructure:"jwt" yaml:"jwt"`
	S3       S3       `mapstructure:"s3" yaml:"s3"`
	Redis    Redis    `mapstructure:"redis" yaml:"redis"`
	Kafka    Kafka    `mapstructure:"kafka" yaml:"kafka"`
}

// Database selects the SQL backend. Driver is "sqlite" or "postgres".
type Database struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// JWT configures token issuing and validation.
type JWT struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// S3 holds S3/MinIO storage configuration. Media uploads fail when disabled.
type S3 struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	PublicURL       string `mapstructure:"public_url" yaml:"public_url"`
}

// Redis enables the shared rate limiter when URL is set.
type Redis struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Kafka enables domain event publishing when Brokers is non-empty.
type Kafka struct {
	Brokers     []string `mapstructure:"brokers" yaml:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix" yaml:"topic_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		MaxMessageBytes:    10 << 20,
		MaxMessageLength:   500,
		RateLimitPerMinute: 120,
		Database: Database{
			Driver: "sqlite",
			DSN:    "chatrocket.db",
		},
		JWT: JWT{
			Issuer:   "chatrocket",
			Audience: "chatrocket",
			TTL:      24 * time.Hour,
		},
		S3: S3{
			Endpoint: "http://localhost:9000",
			Bucket:   "media",
			Region:   "us-east-1",
		},
		Kafka: Kafka{
			TopicPrefix: "chatrocket.",
		},
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.New("database.driver must be sqlite or postgres")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.MaxMessageLength <= 0 {
		return errors.New("max_message_length must be positive")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
}
