package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string

	ListenAddr string

	// KeySalt is the server-side secret mixed into API key digests.
	// Rotating it invalidates every issued key, so treat it like a
	// signing secret.
	KeySalt string

	// LinkBaseURL is the public origin shareable payment-link URLs are
	// built from, e.g. "https://pay.enclose.ai".
	LinkBaseURL string

	Stripe StripeConfig

	// WebhookRetentionDays is how long captured provider webhook events
	// are kept before the retention worker purges them.
	WebhookRetentionDays int
}

// StripeConfig carries process-level Stripe defaults. Per-request values
// take precedence over these; the precedence rule lives in the checkout
// provider, not in ad hoc merging at call sites.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminUser:     getenv("APP_ADMIN_USER", "admin"),
		AdminPassword: getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:   os.Getenv("APP_DATABASE_URL"),
		ListenAddr:    getenv("APP_LISTEN_ADDR", ":8080"),
		KeySalt:       os.Getenv("APP_KEY_SALT"),
		LinkBaseURL:   getenv("APP_LINK_BASE_URL", "http://localhost:8080"),
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", "http://localhost:8080/success"),
			CancelURL:     getenv("STRIPE_CANCEL_URL", "http://localhost:8080/cancel"),
		},
		WebhookRetentionDays: 90,
	}

	if v := os.Getenv("APP_WEBHOOK_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.WebhookRetentionDays = days
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
