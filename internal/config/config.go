package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Transport kinds.
const (
	TransportWebhook = "webhook"
	TransportSNS     = "sns"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL is required for the
// postgres store.
type Config struct {
	// Server
	HTTPPort        string        `validate:"required,numeric"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Store
	StoreDriver string `validate:"oneof=postgres memory"`
	DatabaseURL string `validate:"required_if=StoreDriver postgres"`
	DBMaxConns  int32  `validate:"gt=0"`
	DBMinConns  int32  `validate:"gte=0,ltefield=DBMaxConns"`

	// StoreTimeout bounds every store call and is also the server-side
	// statement_timeout.
	StoreTimeout time.Duration `validate:"gt=0"`

	// Push transport
	Transport       string `validate:"oneof=webhook sns"`
	ProviderBaseURL string `validate:"required_if=Transport webhook"`
	ProviderTimeout time.Duration
	SNSRegion       string `validate:"required_if=Transport sns"`
	AWSEndpointURL  string
	AWSAccessKeyID  string
	AWSSecretKey    string

	// Dispatcher
	Workers         int           `validate:"gt=0"`
	RateLimit       int           `validate:"gt=0"`
	MaxAttempts     int           `validate:"gt=0"`
	ClaimLease      time.Duration `validate:"gt=0"`
	DispatchTimeout time.Duration `validate:"gt=0"`
	// RetryBackoff: index 0 = delay after the first unavailable attempt, etc.
	// The last entry repeats for later attempts.
	RetryBackoff []time.Duration `validate:"min=1,dive,gt=0"`

	// Resolver
	ResolverConcurrency int `validate:"gt=0"`

	// Background worker intervals and limits
	PendingPollInterval       time.Duration `validate:"gt=0"`
	PendingPollLimit          int           `validate:"gt=0"`
	MessagePurgeInterval      time.Duration `validate:"gt=0"`
	NotificationPurgeInterval time.Duration `validate:"gt=0"`
	NotificationRetention     time.Duration `validate:"gt=0"`
	NotificationPurgeLimit    int           `validate:"gt=0"`
	// MaxBatch caps the mutations in one commit. The store rejects more than 500.
	MaxBatch int `validate:"gt=0,lte=500"`
}

var validate = validator.New()

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		StoreDriver: getEnv("STORE_DRIVER", StorePostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		StoreTimeout: getDuration("STORE_TIMEOUT", 5*time.Second),

		Transport:       getEnv("PUSH_TRANSPORT", TransportWebhook),
		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "http://localhost:9090/push"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SNSRegion:       getEnv("SNS_REGION", "us-east-1"),
		AWSEndpointURL:  os.Getenv("AWS_ENDPOINT_URL"),
		AWSAccessKeyID:  os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),

		Workers:         getInt("DISPATCH_WORKERS", 10),
		RateLimit:       getInt("RATE_LIMIT_PER_PRIORITY", 100),
		MaxAttempts:     getInt("MAX_ATTEMPTS", 4),
		ClaimLease:      getDuration("CLAIM_LEASE", 60*time.Second),
		DispatchTimeout: getDuration("DISPATCH_TIMEOUT", 15*time.Second),
		RetryBackoff: getDurations("RETRY_BACKOFF", []time.Duration{
			5 * time.Second, 30 * time.Second, 120 * time.Second,
		}),

		ResolverConcurrency: getInt("RESOLVER_CONCURRENCY", 16),

		PendingPollInterval:       getDuration("PENDING_POLL_INTERVAL", 10*time.Second),
		PendingPollLimit:          getInt("PENDING_POLL_LIMIT", 200),
		MessagePurgeInterval:      getDuration("MESSAGE_PURGE_INTERVAL", 5*time.Minute),
		NotificationPurgeInterval: getDuration("NOTIFICATION_PURGE_INTERVAL", 24*time.Hour),
		NotificationRetention:     getDuration("NOTIFICATION_RETENTION", 7*24*time.Hour),
		NotificationPurgeLimit:    getInt("NOTIFICATION_PURGE_LIMIT", 500),
		MaxBatch:                  getInt("MAX_BATCH", 450),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getDurations parses a comma-separated list such as "5s,30s,2m".
// Any unparsable entry discards the whole value.
func getDurations(key string, defaultVal []time.Duration) []time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []time.Duration
	for _, part := range strings.Split(v, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultVal
		}
		out = append(out, d)
	}
	return out
}
