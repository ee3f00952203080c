package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	DB        DBConfig
	Redis     RedisConfig
	Gate      GateConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
	SeedDemo bool
}

// StorageConfig выбирает бэкенды для реестров и сессий
type StorageConfig struct {
	Driver       string // memory | postgres
	SessionStore string // memory | postgres | redis
	LinkCacheTTL time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type GateConfig struct {
	SessionTTL time.Duration
}

// AuthConfig настройки входа в админку
type AuthConfig struct {
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Load читает .env (если он есть) и переменные окружения
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("STORAGE_DRIVER", DriverMemory)
	v.SetDefault("LINK_CACHE_TTL", time.Hour)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", 30*time.Minute)
	v.SetDefault("ADMIN_TOKEN_TTL", 12*time.Hour)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

// FromViper собирает Config из уже настроенного экземпляра viper
func FromViper(v *viper.Viper) *Config {
	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.Env = v.GetString("APP_ENV")
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")
	cfg.App.SeedDemo = v.GetBool("SEED_DEMO")

	cfg.Storage.Driver = v.GetString("STORAGE_DRIVER")
	cfg.Storage.SessionStore = v.GetString("SESSION_STORE")
	if cfg.Storage.SessionStore == "" {
		// По умолчанию сессии живут там же, где и ссылки
		cfg.Storage.SessionStore = cfg.Storage.Driver
	}
	cfg.Storage.LinkCacheTTL = v.GetDuration("LINK_CACHE_TTL")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Gate.SessionTTL = v.GetDuration("SESSION_TTL")

	cfg.Auth.AdminPassword = v.GetString("ADMIN_PASSWORD")
	cfg.Auth.JWTSecret = v.GetString("ADMIN_JWT_SECRET")
	cfg.Auth.TokenTTL = v.GetDuration("ADMIN_TOKEN_TTL")

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	return &cfg
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Storage.SessionStore {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Storage.Driver != DriverPostgres {
			return errors.New("SESSION_STORE=postgres requires STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Storage.SessionStore)
	}

	if c.Auth.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("ADMIN_JWT_SECRET must be at least 32 bytes")
	}
	if c.Gate.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize <= 0 {
		return errors.New("rate limit settings must be positive")
	}

	return nil
}

// UsesRedis сообщает, нужен ли процессу Redis
func (c *Config) UsesRedis() bool {
	return c.Storage.SessionStore == DriverRedis || c.Storage.Driver == DriverPostgres
}
