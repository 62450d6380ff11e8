// Package config loads runtime settings from an optional env file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the settings of every component.
type Config struct {
	App     AppConfig
	Redis   RedisConfig
	Catalog CatalogConfig
	Stock   StockConfig
	Log     LogConfig
}

// AppConfig identifies the running process.
type AppConfig struct {
	Name        string
	Env         string
	MetricsAddr string // empty disables the /metrics listener
}

// RedisConfig locates the store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// CatalogConfig drives catalog generation and loading.
type CatalogConfig struct {
	Count           int
	Seed            uint64
	MinIngredients  int
	MaxIngredients  int
	MinInitialStock int
	MaxInitialStock int
	MaxStock        int
	LoadBatchSize   int // 0 loads the whole catalog in one pipeline
}

// StockConfig bounds the optimistic retry loop.
type StockConfig struct {
	MaxAttempts int
}

// LogConfig selects the log level, the primary sink and an optional file sink.
type LogConfig struct {
	Level  string
	Output string
	File   string
}

var ErrInvalid = errors.New("config: invalid")

// Load reads sushistore.env or config.env when present, then the environment.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("env")
	for _, name := range []string{"sushistore", "config"} {
		v.SetConfigName(name)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read %s.env: %w", name, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("SERVICE_NAME"),
			Env:         v.GetString("ENV"),
			MetricsAddr: v.GetString("METRICS_ADDR"),
		},
		Redis: RedisConfig{
			Addr:         v.GetString("REDIS_ADDR"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
		},
		Catalog: CatalogConfig{
			Count:           v.GetInt("SUSHI_COUNT"),
			Seed:            v.GetUint64("RANDOM_SEED"),
			MinIngredients:  v.GetInt("MIN_INGREDIENTS"),
			MaxIngredients:  v.GetInt("MAX_INGREDIENTS"),
			MinInitialStock: v.GetInt("MIN_INITIAL_STOCK"),
			MaxInitialStock: v.GetInt("MAX_INITIAL_STOCK"),
			MaxStock:        v.GetInt("MAX_STOCK"),
			LoadBatchSize:   v.GetInt("LOAD_BATCH_SIZE"),
		},
		Stock: StockConfig{
			MaxAttempts: v.GetInt("STOCK_MAX_ATTEMPTS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Output: v.GetString("LOG_OUTPUT"),
			File:   v.GetString("LOG_FILE"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "sushistore")
	v.SetDefault("ENV", "dev")
	v.SetDefault("METRICS_ADDR", "")

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_POOL_SIZE", 10)

	v.SetDefault("SUSHI_COUNT", 100_000)
	v.SetDefault("RANDOM_SEED", 444)
	v.SetDefault("MIN_INGREDIENTS", 1)
	v.SetDefault("MAX_INGREDIENTS", 73)
	v.SetDefault("MIN_INITIAL_STOCK", 10)
	v.SetDefault("MAX_INITIAL_STOCK", 10_000)
	v.SetDefault("MAX_STOCK", 10_000)
	v.SetDefault("LOAD_BATCH_SIZE", 0)

	v.SetDefault("STOCK_MAX_ATTEMPTS", 32)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_OUTPUT", "stderr")
	v.SetDefault("LOG_FILE", "")
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects inconsistent bounds.
func (c *Config) Validate() error {
	cat := c.Catalog
	switch {
	case c.Redis.Addr == "":
		return fmt.Errorf("%w: REDIS_ADDR is empty", ErrInvalid)
	case cat.Count < 0:
		return fmt.Errorf("%w: SUSHI_COUNT must not be negative", ErrInvalid)
	case cat.MinIngredients < 1 || cat.MinIngredients > cat.MaxIngredients:
		return fmt.Errorf("%w: need 1 <= MIN_INGREDIENTS <= MAX_INGREDIENTS", ErrInvalid)
	case cat.MaxStock <= 0:
		return fmt.Errorf("%w: MAX_STOCK must be positive", ErrInvalid)
	case cat.MinInitialStock < 0 || cat.MinInitialStock > cat.MaxInitialStock || cat.MaxInitialStock > cat.MaxStock:
		return fmt.Errorf("%w: need 0 <= MIN_INITIAL_STOCK <= MAX_INITIAL_STOCK <= MAX_STOCK", ErrInvalid)
	case cat.LoadBatchSize < 0:
		return fmt.Errorf("%w: LOAD_BATCH_SIZE must not be negative", ErrInvalid)
	case c.Log.Output == "":
		return fmt.Errorf("%w: LOG_OUTPUT is empty", ErrInvalid)
	case c.Stock.MaxAttempts < 1:
		return fmt.Errorf("%w: STOCK_MAX_ATTEMPTS must be at least 1", ErrInvalid)
	}
	return nil
}
