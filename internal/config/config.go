package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

// StripeConfig holds the payment processor credentials and redirect URLs.
// SecretKey and WebhookSecret must never be logged or echoed in responses.
type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	PublishableKey   string
	SuccessURL       string
	CancelURL        string
	AllowedCountries []string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Stripe   StripeConfig
	Kafka    KafkaConfig
}

// NewConfig loads configuration from the environment, optionally seeded from
// a .env file in the working directory.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")

	var err error
	if cfg.Postgres.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Port, err = requireEnv("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Postgres.User, err = requireEnv("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Postgres.DBName, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = int32(getEnvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getEnvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = time.Duration(getEnvInt("DB_MAX_CONN_LIFETIME_MINUTES", 30)) * time.Minute
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	if cfg.Stripe.SecretKey, err = requireEnv("STRIPE_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.Stripe.WebhookSecret, err = requireEnv("STRIPE_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	cfg.Stripe.PublishableKey = os.Getenv("STRIPE_PUBLISHABLE_KEY")
	cfg.Stripe.SuccessURL = getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/order-success?session_id={CHECKOUT_SESSION_ID}")
	cfg.Stripe.CancelURL = getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/cart")
	cfg.Stripe.AllowedCountries = splitEnv("CHECKOUT_SHIPPING_COUNTRIES", "US,CA,GB,DE,FR")

	cfg.Kafka.Brokers = splitEnv("KAFKA_BROKERS", "")
	cfg.Kafka.Topic = getEnv("KAFKA_ORDER_EVENTS_TOPIC", "order-events")
	cfg.Kafka.Enabled = len(cfg.Kafka.Brokers) > 0

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitEnv(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
