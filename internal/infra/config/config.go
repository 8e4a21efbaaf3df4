package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	MongoURI    string
	MongoDB     string
	PostgresDSN string
	BoltPath    string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	StripeAPIKey        string
	StripeBaseURL       string
	StripeWebhookSecret string
	PayPalClientID      string
	PayPalClientSecret  string
	PayPalBaseURL       string
	PayPalFloorMinor    int64

	VerifyURL    string
	VerifySecret string

	JWTSecret string

	PaymentWindow      time.Duration
	ExpirySweepEvery   time.Duration
	DepositPercentage  int64
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "dev"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "stayflow"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		BoltPath:            getEnv("BOLT_PATH", ""),
		KafkaTopicPrefix:    getEnv("KAFKA_TOPIC_PREFIX", ""),
		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:  os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalBaseURL:       getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		VerifyURL:           getEnv("VERIFY_URL", ""),
		VerifySecret:        os.Getenv("VERIFY_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		S3Endpoint:          getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3AccessKey:         getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:         getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:            getEnv("S3_BUCKET", "stayflow-evidence"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	floor, err := parseIntEnv("PAYPAL_FLOOR_MINOR", 499)
	if err != nil {
		return Config{}, err
	}
	cfg.PayPalFloorMinor = floor

	depositPct, err := parseIntEnv("DEPOSIT_PERCENTAGE", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.DepositPercentage = depositPct

	window, err := parseDurationEnv("PAYMENT_WINDOW", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.PaymentWindow = window

	sweep, err := parseDurationEnv("EXPIRY_SWEEP_EVERY", time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.ExpirySweepEvery = sweep

	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 168*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	useSSL, err := parseBoolEnv("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.S3UseSSL = useSSL

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StripeAPIKey == "" {
		return Config{}, fmt.Errorf("STRIPE_API_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
