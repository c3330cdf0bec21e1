// Package config loads service configuration from an optional YAML file
// with environment-variable overrides, so the same binary runs unchanged
// in docker-compose (env) and on a laptop (file).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service ServiceConfig `yaml:"service"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Stripe  StripeConfig  `yaml:"stripe"`
}

type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	// Path of the SQLite database file.
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type StripeConfig struct {
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
	// Currency applies to the whole order; there is no per-item currency.
	Currency   string `yaml:"currency"`
	SuccessURL string `yaml:"success_url"`
	CancelURL  string `yaml:"cancel_url"`
}

// Load reads path (if non-empty and present) over the defaults, then
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("config: stripe secret key is required (STRIPE_SECRET)")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{Name: "checkout-service", LogLevel: "info"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Storage: StorageConfig{Path: "./data/checkout.db"},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Stripe: StripeConfig{
			Currency:   "gbp",
			SuccessURL: "http://localhost:5173/success",
			CancelURL:  "http://localhost:3000/cancel",
		},
	}
}

func applyEnv(cfg *Config) {
	overrideString(&cfg.Service.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.HTTP.Addr, "HTTP_ADDR")
	overrideString(&cfg.Storage.Path, "SQLITE_PATH")
	overrideString(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideString(&cfg.Stripe.SecretKey, "STRIPE_SECRET")
	overrideString(&cfg.Stripe.BaseURL, "STRIPE_BASE_URL")
	overrideString(&cfg.Stripe.Currency, "STRIPE_CURRENCY")
	overrideString(&cfg.Stripe.SuccessURL, "CHECKOUT_SUCCESS_URL")
	overrideString(&cfg.Stripe.CancelURL, "CHECKOUT_CANCEL_URL")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
