// Package config reads the bridge configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string

	// MollieMode selects which API key is handed to the gateway client.
	// The keys themselves are opaque; decryption/secret management is the
	// deployment's concern.
	MollieMode    string // "test" or "live"
	MollieTestKey string
	MollieLiveKey string

	DatabaseURL string // empty: in-memory store
	RabbitURL   string // empty: events are dropped
	EventsName  string // exchange name

	SuccessURL string
	FailureURL string

	PollInterval  time.Duration
	PollMaxAge    time.Duration
	PollBatchSize int
}

func Load() Config {
	return Config{
		HTTPAddr:      getEnv("BRIDGE_HTTP_ADDR", ":8080"),
		PublicBaseURL: getEnv("BRIDGE_PUBLIC_URL", "http://localhost:8080"),
		MollieMode:    getEnv("MOLLIE_MODE", "test"),
		MollieTestKey: getEnv("MOLLIE_TEST_API_KEY", ""),
		MollieLiveKey: getEnv("MOLLIE_LIVE_API_KEY", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RabbitURL:     getEnv("RABBITMQ_URL", ""),
		EventsName:    getEnv("EVENTS_EXCHANGE", "mall.payments"),
		SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "/checkout/success"),
		FailureURL:    getEnv("CHECKOUT_FAILURE_URL", "/checkout/failed"),
		PollInterval:  getDuration("POLL_INTERVAL", 5*time.Minute),
		PollMaxAge:    getDuration("POLL_MAX_AGE", 10*time.Minute),
		PollBatchSize: getInt("POLL_BATCH_SIZE", 50),
	}
}

// APIKey resolves the credential for the configured mode, the same
// test/live switch the shop's settings screen exposes.
func (c Config) APIKey() string {
	if c.MollieMode == "live" {
		return c.MollieLiveKey
	}
	return c.MollieTestKey
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
