/*
config.go - Server configuration

PURPOSE:
  Load settles every tunable once at startup. Precedence, lowest first:
  built-in defaults, an optional config file, a .env file, then SHIFT_*
  environment variables. The resulting Config is passed down explicitly;
  nothing reads it globally.

ENVIRONMENT:
  Keys map to variables by upper-casing and replacing "." with "_":
    schedule.apply_deadline_days -> SHIFT_SCHEDULE_APPLY_DEADLINE_DAYS
    jwt.secret                   -> SHIFT_JWT_SECRET
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/shift-engine/schedule"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHIFT"

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	DevMode  bool           `mapstructure:"dev_mode"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ScheduleConfig holds the engine tunables.
type ScheduleConfig struct {
	ApplyDeadlineDays int           `mapstructure:"apply_deadline_days"`
	MaxReasonLength   int           `mapstructure:"max_reason_length"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// Engine converts the schedule section into the service configuration.
func (c ScheduleConfig) Engine() schedule.Config {
	return schedule.Config{
		DeadlineDays:    c.ApplyDeadlineDays,
		MaxReasonLength: c.MaxReasonLength,
		MaxRetries:      c.MaxRetries,
		RetryBackoff:    c.RetryBackoff,
	}
}

// RedisConfig enables the distributed lock when Enabled is set.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("database.path", "shifts.db")

	v.SetDefault("schedule.apply_deadline_days", 14)
	v.SetDefault("schedule.max_reason_length", 500)
	v.SetDefault("schedule.max_retries", 3)
	v.SetDefault("schedule.retry_backoff", "20ms")
	v.SetDefault("schedule.sweep_interval", "1h")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "5s")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "shift-engine")
	v.SetDefault("jwt.ttl", "12h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("dev_mode", false)
}

// Load reads configuration. path names a config file; when empty,
// config.yaml is looked up in ./config and the working directory and may
// be absent.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server can't run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port must be 1-65535, got %d", c.Server.Port)
	case c.Database.Path == "":
		return errors.New("config: database.path is required")
	case c.Schedule.ApplyDeadlineDays < 0:
		return fmt.Errorf("config: schedule.apply_deadline_days must be >= 0, got %d", c.Schedule.ApplyDeadlineDays)
	case c.Schedule.MaxRetries <= 0:
		return fmt.Errorf("config: schedule.max_retries must be positive, got %d", c.Schedule.MaxRetries)
	case c.Schedule.MaxReasonLength <= 0:
		return fmt.Errorf("config: schedule.max_reason_length must be positive, got %d", c.Schedule.MaxReasonLength)
	case c.Schedule.SweepInterval < 0:
		return errors.New("config: schedule.sweep_interval must not be negative")
	case c.JWT.Secret == "" && !c.DevMode:
		return errors.New("config: jwt.secret is required outside dev_mode")
	case c.JWT.Secret != "" && len(c.JWT.Secret) < 16:
		return errors.New("config: jwt.secret must be at least 16 characters")
	case c.Redis.Enabled && c.Redis.Addr == "":
		return errors.New("config: redis.addr is required when redis.enabled")
	}
	return nil
}
