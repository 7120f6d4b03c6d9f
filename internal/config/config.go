package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Relay kind values reported by the discovery document.
const (
	KindManagedCloud = "managed-cloud"
	KindSelfHosted   = "self-hosted"
)

type Config struct {
	// HTTP
	Port string

	// Identity / auth
	RelaySecret string // shared secret proven via the challenge endpoint
	APIKey      string // empty means open mode (no API key check)
	RelayKind   string

	// Pairing
	PairingTTL     time.Duration
	DeepLinkScheme string

	// Rate limiting
	RateLimit       int
	RateLimitWindow time.Duration

	// Janitor
	SweepInterval time.Duration

	// Logging
	LogLevel string
}

// Load builds a Config from the environment. Only COURIER_RELAY_SECRET is
// required; everything else has a usable default.
func Load() Config {
	return Config{
		Port:            getenv("COURIER_PORT", "8080"),
		RelaySecret:     must("COURIER_RELAY_SECRET"),
		APIKey:          os.Getenv("COURIER_API_KEY"),
		RelayKind:       getenv("COURIER_RELAY_KIND", KindSelfHosted),
		PairingTTL:      getdur("COURIER_PAIRING_TTL", 5*time.Minute),
		DeepLinkScheme:  getenv("COURIER_DEEP_LINK_SCHEME", "courier"),
		RateLimit:       getint("COURIER_RATE_LIMIT", 30),
		RateLimitWindow: getdur("COURIER_RATE_LIMIT_WINDOW", time.Minute),
		SweepInterval:   getdur("COURIER_SWEEP_INTERVAL", time.Minute),
		LogLevel:        os.Getenv("COURIER_LOG_LEVEL"),
	}
}

// OpenMode reports whether API-key checks are disabled (no key configured).
func (c Config) OpenMode() bool { return c.APIKey == "" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		slog.Warn("invalid integer, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		slog.Warn("invalid duration, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("missing required env", "key", k)
		os.Exit(1)
	}
	return v
}
