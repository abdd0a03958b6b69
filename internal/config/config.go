package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	JWTExpiryH  int    `env:"JWT_EXPIRY_H" envDefault:"24"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	WebhookURL         string `env:"WEBHOOK_URL"`
	WebhookSecret      string `env:"WEBHOOK_SECRET"`
	WebhookIntervalS   int    `env:"WEBHOOK_INTERVAL_S" envDefault:"5"`
	SweepIntervalM     int    `env:"SWEEP_INTERVAL_M" envDefault:"60"`
	LedgerApplyRetries int    `env:"LEDGER_APPLY_RETRIES" envDefault:"3"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryH) * time.Hour
}

func (c *Config) WebhookInterval() time.Duration {
	return time.Duration(c.WebhookIntervalS) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalM) * time.Minute
}
