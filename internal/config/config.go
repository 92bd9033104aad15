package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `env:"LISTEN_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	AppBaseURL  string `env:"APP_BASE_URL" envDefault:"https://akitaconnect.com"`

	// WebhookSecret guards the webhook. Empty leaves it open.
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	DedupTTL      time.Duration `env:"DEDUP_TTL" envDefault:"10m"`

	DB      DBConfig      `envPrefix:"DB_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`
	VAPID   VAPIDConfig   `envPrefix:"VAPID_"`
	Push    PushConfig    `envPrefix:"PUSH_"`
	Email   EmailConfig   `envPrefix:"EMAIL_"`
	Auth    AuthConfig    `envPrefix:"AUTH_"`
	Console ConsoleConfig `envPrefix:"CONSOLE_"`
	Log     LogConfig     `envPrefix:"LOG_"`
}

type DBConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type VAPIDConfig struct {
	PublicKey  string `env:"PUBLIC_KEY"`
	PrivateKey string `env:"PRIVATE_KEY"`
	Subject    string `env:"SUBJECT" envDefault:"notifications@akitaconnect.com"`
}

type PushConfig struct {
	TTL         int           `env:"TTL" envDefault:"86400"`
	Urgency     string        `env:"URGENCY" envDefault:"normal"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"8"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type EmailConfig struct {
	// APIKey is the provider key, used as the SMTP relay password. Empty disables email.
	APIKey      string        `env:"API_KEY"`
	SmtpHost    string        `env:"SMTP_HOST" envDefault:"smtp.resend.com"`
	SmtpPort    int           `env:"SMTP_PORT" envDefault:"587"`
	SmtpUser    string        `env:"SMTP_USER" envDefault:"resend"`
	From        string        `env:"FROM" envDefault:"Akita Connect <notifications@akitaconnect.com>"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
}

type AuthConfig struct {
	// JWTSecret verifies member bearer tokens issued by the backend.
	JWTSecret string `env:"JWT_SECRET"`
}

type ConsoleConfig struct {
	SessionKey    string `env:"SESSION_KEY"`
	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
	Env    string `env:"ENV" envDefault:"dev"`
}

// Load reads .env when present and then the process environment.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	// DATABASE_URL is the name most hosting platforms inject.
	if cfg.DB.URL == "" {
		cfg.DB.URL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.VAPID.Subject = strings.TrimPrefix(cfg.VAPID.Subject, "mailto:")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DB.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if c.Push.Concurrency <= 0 {
		return fmt.Errorf("PUSH_CONCURRENCY must be positive, got %d", c.Push.Concurrency)
	}
	switch c.Push.Urgency {
	case "very-low", "low", "normal", "high":
	default:
		return fmt.Errorf("PUSH_URGENCY %q is not a web push urgency", c.Push.Urgency)
	}
	return nil
}

