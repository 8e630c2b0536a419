package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Business BusinessConfig `mapstructure:"business"`
	Health   HealthConfig   `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type LockConfig struct {
	TTL           string `mapstructure:"LOCK_TTL"`
	RetryInterval string `mapstructure:"LOCK_RETRY_INTERVAL"`
	MaxRetries    int    `mapstructure:"LOCK_MAX_RETRIES"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	DepositExpiryMinutes int    `mapstructure:"DEPOSIT_EXPIRY_MINUTES"`
	DayTimezone          string `mapstructure:"DAY_TIMEZONE"`
	EvaluationCron       string `mapstructure:"EVALUATION_CRON"`
	ExpirySweepCron      string `mapstructure:"EXPIRY_SWEEP_CRON"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOCK_TTL", "30s")
	viper.SetDefault("LOCK_RETRY_INTERVAL", "100ms")
	viper.SetDefault("LOCK_MAX_RETRIES", 30)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("DEPOSIT_EXPIRY_MINUTES", 30)
	viper.SetDefault("DAY_TIMEZONE", "Asia/Shanghai")
	viper.SetDefault("EVALUATION_CRON", "0 5 0 * * *")
	viper.SetDefault("EXPIRY_SWEEP_CRON", "0 0 * * * *")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.DepositExpiryMinutes <= 0 {
		return fmt.Errorf("DEPOSIT_EXPIRY_MINUTES must be greater than 0")
	}

	if _, err := time.LoadLocation(c.Business.DayTimezone); err != nil {
		return fmt.Errorf("DAY_TIMEZONE must be a valid IANA timezone: %w", err)
	}

	if _, err := time.ParseDuration(c.Lock.TTL); err != nil {
		return fmt.Errorf("LOCK_TTL must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Lock.RetryInterval); err != nil {
		return fmt.Errorf("LOCK_RETRY_INTERVAL must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// DepositExpiry returns how long a pending deposit waits for payment
func (c *Config) DepositExpiry() time.Duration {
	return time.Duration(c.Business.DepositExpiryMinutes) * time.Minute
}

// DayLocation returns the timezone used for calendar-day boundaries
func (c *Config) DayLocation() *time.Location {
	loc, err := time.LoadLocation(c.Business.DayTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LockTTL returns the per-record lock expiry as duration
func (c *Config) LockTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Lock.TTL)
	return ttl
}

// LockRetryInterval returns the lock retry interval as duration
func (c *Config) LockRetryInterval() time.Duration {
	interval, _ := time.ParseDuration(c.Lock.RetryInterval)
	return interval
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
