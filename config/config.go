package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	// Companion backend (schedule content + trigger reports).
	BackendBaseURL string `env:"BACKEND_BASE_URL,required" validate:"required,url"`
	BackendCookie  string `env:"BACKEND_SESSION_COOKIE,required" validate:"required"`

	// Target platform.
	SubstackBaseURL string `env:"SUBSTACK_BASE_URL" envDefault:"https://substack.com" validate:"required,url"`
	SubstackCookie  string `env:"SUBSTACK_SESSION_COOKIE" validate:"required_if=PublishMode api"`

	// PublishMode selects the publish adapter: "api" posts straight to the
	// platform API, "dom" drives a hosted page session over the bridge.
	PublishMode   string `env:"PUBLISH_MODE" envDefault:"api" validate:"oneof=api dom"`
	BridgeURL     string `env:"BRIDGE_URL" validate:"required_if=PublishMode dom,omitempty,url"`
	SettleDelayMS int    `env:"SETTLE_DELAY_MS" envDefault:"3000" validate:"min=0,max=30000"`
	KeepTabOpen   bool   `env:"KEEP_TAB_OPEN" envDefault:"false"`

	MaxAttachments int `env:"MAX_ATTACHMENTS" envDefault:"4" validate:"min=0,max=10"`

	// ReconcileSpec is a cron expression for the timer reconciliation sweep.
	ReconcileSpec  string `env:"RECONCILE_SPEC" envDefault:"@every 5m" validate:"required"`
	MissedGraceSec int    `env:"MISSED_GRACE_SEC" envDefault:"300" validate:"min=0"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AlertEmail   string `env:"ALERT_EMAIL"    validate:"omitempty,email"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
