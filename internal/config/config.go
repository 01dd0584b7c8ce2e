// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/notifmoo/notif/internal/apperrors"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Bus      BusConfig      `mapstructure:"bus"`
	App      AppConfig      `mapstructure:"app"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Debug    bool           `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	SSLMode        string        `mapstructure:"ssl_mode"`
	MaxConnections int32         `mapstructure:"max_connections"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

// ConnectionString returns the pgx connection string.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// MigrateConnectionString returns the connection string for golang-migrate.
func (c DatabaseConfig) MigrateConnectionString() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// BusConfig contains pub/sub backend settings.
type BusConfig struct {
	// Backend is "redis" or "local". Local is single-instance only.
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
}

// AppConfig contains the legacy application key pair used for channel auth
// and the broadcast API.
type AppConfig struct {
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

// AuthConfig contains dashboard authentication settings.
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTExpiry      time.Duration `mapstructure:"jwt_expiry"`
	PasswordMinLen int           `mapstructure:"password_min_length"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
}

// RealtimeConfig contains websocket fan-out settings.
type RealtimeConfig struct {
	// ChannelBufferSize is the per-receiver broadcast buffer. Receivers
	// lagging beyond it lose their oldest pending messages.
	ChannelBufferSize int `mapstructure:"channel_buffer_size"`
}

// Load loads configuration from notif.yaml and NOTIF_* environment variables.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("notif")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/notif")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NOTIF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.address", "0.0.0.0:3000")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.body_limit", 4*1024*1024)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "notif")
	viper.SetDefault("database.password", "notif")
	viper.SetDefault("database.database", "notif")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.acquire_timeout", "5s")

	viper.SetDefault("bus.backend", "redis")
	viper.SetDefault("bus.redis_url", "redis://127.0.0.1:6379/0")

	viper.SetDefault("app.key", "notif_key")
	viper.SetDefault("app.secret", "notif_secret")

	viper.SetDefault("auth.jwt_secret", "notif_jwt_secret_change_in_production_32chars")
	viper.SetDefault("auth.jwt_expiry", "168h")
	viper.SetDefault("auth.password_min_length", 8)
	viper.SetDefault("auth.bcrypt_cost", 12)

	viper.SetDefault("realtime.channel_buffer_size", 64)

	viper.SetDefault("debug", false)
}

// Validate checks the loaded configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return apperrors.Config("server.address is required")
	}
	if c.App.Secret == "" {
		return apperrors.Config("app.secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return apperrors.Config("auth.jwt_secret must be at least 32 characters")
	}
	switch c.Bus.Backend {
	case "redis":
		if c.Bus.RedisURL == "" {
			return apperrors.Config("bus.redis_url is required for the redis backend")
		}
	case "local":
	default:
		return apperrors.Config("bus.backend must be \"redis\" or \"local\"")
	}
	if c.Realtime.ChannelBufferSize <= 0 {
		return apperrors.Config("realtime.channel_buffer_size must be positive")
	}
	return nil
}

// loadEnvFile loads a .env file from the working directory or its parents.
func loadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return os.ErrNotExist
		}
		dir = parent
	}
}
