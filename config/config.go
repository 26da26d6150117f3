// Package config loads flowgate's runtime configuration. The quota
// thresholds live here, in one place, rather than being hardcoded
// separately in the counter, the evaluator, and the modal copy.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/promptlane/flowgate"
)

// Config holds all runtime settings.
type Config struct {
	Env        string          `yaml:"env" env:"FLOWGATE_ENV" env-default:"local"`
	Quota      flowgate.Limits `yaml:"quota"`
	Milestones []int           `yaml:"milestones"`
	Storage    Storage         `yaml:"storage"`
	Postgres   Postgres        `yaml:"postgres"`
	Redis      Redis           `yaml:"redis"`
}

// Storage configures the local client-side stores.
type Storage struct {
	ProgressDir   string `yaml:"progress_dir" env:"FLOWGATE_PROGRESS_DIR"`
	CounterPath   string `yaml:"counter_path" env:"FLOWGATE_COUNTER_PATH"`
	CompletionDir string `yaml:"completion_dir" env:"FLOWGATE_COMPLETION_DIR"`
}

// Postgres configures the usage-event store connection.
type Postgres struct {
	ConnString string `yaml:"conn_string" env:"FLOWGATE_POSTGRES_CONN"`
}

// Redis configures the stats store connection.
type Redis struct {
	Addr        string        `yaml:"addr" env:"FLOWGATE_REDIS_ADDR"`
	Password    string        `yaml:"password" env:"FLOWGATE_REDIS_PASSWORD"`
	DB          int           `yaml:"db" env:"FLOWGATE_REDIS_DB"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"FLOWGATE_REDIS_DIAL_TIMEOUT" env-default:"5s"`
}

// Load reads configuration from the given YAML file plus environment
// overrides. An empty path reads from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
	}
	if err := cfg.Quota.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quota limits: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration from the path in CONFIG_PATH, falling back
// to environment-only configuration when unset. It exits on error.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
