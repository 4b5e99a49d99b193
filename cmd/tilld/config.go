package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the tilld configuration file.
type Config struct {
	HTTP struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	Redis struct {
		URL     string        `yaml:"url"`
		Prefix  string        `yaml:"prefix"`
		CartTTL time.Duration `yaml:"cart_ttl"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Loyalty struct {
		EarnPoints      int64   `yaml:"earn_points"`
		EarnPer         int64   `yaml:"earn_per"`
		MembershipRatio float64 `yaml:"membership_ratio"`
	} `yaml:"loyalty"`

	Webhook struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"webhook"`

	Booking struct {
		APIKey   string `yaml:"api_key"`
		From     string `yaml:"from"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"booking"`

	Metrics struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path"`
	} `yaml:"metrics"`
}

func defaultConfig() Config {
	var c Config
	c.HTTP.Addr = ":8080"
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.Log.Level = "info"
	c.Store.Driver = "memory"
	c.Redis.Prefix = "till"
	c.Redis.CartTTL = 24 * time.Hour
	c.Kafka.Topic = "till.bills"
	c.Metrics.Path = "/metrics"
	return c
}

// loadConfig reads path (when set) over the defaults and then applies
// TILL_* environment overrides.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	env := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	env("TILL_HTTP_ADDR", &cfg.HTTP.Addr)
	env("TILL_LOG_LEVEL", &cfg.Log.Level)
	env("TILL_STORE_DRIVER", &cfg.Store.Driver)
	env("TILL_STORE_DSN", &cfg.Store.DSN)
	env("TILL_REDIS_URL", &cfg.Redis.URL)
	env("TILL_KAFKA_TOPIC", &cfg.Kafka.Topic)
	env("TILL_WEBHOOK_USERNAME", &cfg.Webhook.Username)
	env("TILL_WEBHOOK_PASSWORD", &cfg.Webhook.Password)
	env("TILL_BOOKING_API_KEY", &cfg.Booking.APIKey)
	env("TILL_BOOKING_FROM", &cfg.Booking.From)
	if v := getenv("TILL_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Booking.APIKey != "" && c.Booking.From == "" {
		return errors.New("booking.from is required when booking.api_key is set")
	}
	if (c.Loyalty.EarnPoints > 0) != (c.Loyalty.EarnPer > 0) {
		return errors.New("loyalty.earn_points and loyalty.earn_per must be set together")
	}
	return nil
}

func (c Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
