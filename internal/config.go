package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/deepdish/internal/notify"
	"github.com/starford/deepdish/internal/repository/sqldb"
)

// Storage backends.
const (
	DatabaseMemory   = "memory"
	DatabaseSQLite   = sqldb.DriverSQLite
	DatabasePostgres = sqldb.DriverPostgres
)

// Messaging backends.
const (
	MessagingStub  = "stub"
	MessagingRedis = "redis"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Database  DatabaseConfig    `yaml:"database"`
	Messaging MessagingConfig   `yaml:"messaging"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	return c.Messaging.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the repository backend. DSN is a file path for
// sqlite and a connection string for postgres; memory ignores it.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(DatabaseMemory, DatabaseSQLite, DatabasePostgres)),
		validation.Field(&c.DSN, validation.When(c.Driver != DatabaseMemory, validation.Required)),
	)
}

// MessagingConfig selects where ingredient events go.
type MessagingConfig struct {
	Driver string      `yaml:"driver"`
	Redis  RedisConfig `yaml:"redis"`
}

// Validate validates the messaging configuration.
func (c *MessagingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(MessagingStub, MessagingRedis)),
	); err != nil {
		return err
	}
	if c.Driver == MessagingRedis {
		return c.Redis.Validate()
	}
	return nil
}

// RedisConfig holds the Redis Streams publisher settings.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	TopicPrefix string `yaml:"topic_prefix"`
	QueueSize   int    `yaml:"queue_size"`
}

// Validate validates the Redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.TopicPrefix, validation.Required),
		validation.Field(&c.QueueSize, validation.Min(0)),
	)
}

func (c *RedisConfig) publisherConfig() notify.RedisConfig {
	return notify.RedisConfig{
		Addr:        c.Addr,
		TopicPrefix: c.TopicPrefix,
		QueueSize:   c.QueueSize,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Database: DatabaseConfig{
			Driver: DatabaseSQLite,
			DSN:    "./deepdish.db",
		},
		Messaging: MessagingConfig{
			Driver: MessagingStub,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				TopicPrefix: "deepdish",
				QueueSize:   notify.DefaultQueueSize,
			},
		},
	}
}
