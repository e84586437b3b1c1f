package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	applog "omnishop/internal/log"
)

type Config struct {
	Port         string        `yaml:"port"`
	DBDriver     string        `yaml:"db_driver"` // sqlite | pgx
	DBDSN        string        `yaml:"db_dsn"`
	LogFile      string        `yaml:"log_file"`
	LogLevel     string        `yaml:"log_level"`
	SyncTimeout  time.Duration `yaml:"cart_sync_timeout"`
	SessionIdle  time.Duration `yaml:"cart_session_idle"`
	LoginRateMax int           `yaml:"login_rate_max"`
	RateMax      int           `yaml:"rate_max"` // requests per minute per client
	AccessLog    bool          `yaml:"access_log"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		DBDriver:     "sqlite",
		DBDSN:        "omnishop.db", // sqlite file in project root
		LogLevel:     "info",
		SyncTimeout:  10 * time.Second,
		SessionIdle:  30 * time.Minute,
		LoginRateMax: 5,
		RateMax:      60,
		AccessLog:    true,
	}
}

// Load applies defaults, then the YAML file at path (if any), then env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "pgx" {
		return Config{}, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	applog.Info(nil, "config.loaded", map[string]any{
		"port": cfg.Port, "db_driver": cfg.DBDriver, "log_file": cfg.LogFile,
		"sync_timeout": cfg.SyncTimeout.String(), "session_idle": cfg.SessionIdle.String(),
	})
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	num := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Port)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_DSN", &c.DBDSN)
	str("LOG_FILE", &c.LogFile)
	str("LOG_LEVEL", &c.LogLevel)
	if err := dur("CART_SYNC_TIMEOUT", &c.SyncTimeout); err != nil {
		return err
	}
	if err := dur("CART_SESSION_IDLE", &c.SessionIdle); err != nil {
		return err
	}
	if err := num("LOGIN_RATE_MAX", &c.LoginRateMax); err != nil {
		return err
	}
	if err := num("RATE_MAX", &c.RateMax); err != nil {
		return err
	}
	if v := os.Getenv("ACCESS_LOG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ACCESS_LOG: %w", err)
		}
		c.AccessLog = b
	}
	return nil
}
