package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config captures all tunable parameters for the reconciler process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Trip backend endpoints.
	SnapshotEndpoint     string
	CompleteStopEndpoint string
	DriverID             string

	// External directions service.
	RoutingEndpoint   string
	RoutingAPIKey     string
	RateLimitCooldown time.Duration
	GeometryCacheTTL  time.Duration

	PollInterval time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:          ":8080",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		RoutingEndpoint:   "https://api.openrouteservice.org/v2/directions/driving-car",
		RateLimitCooldown: 30 * time.Second,
		GeometryCacheTTL:  5 * time.Minute,
		PollInterval:      10 * time.Second,
		KafkaTopic:        "itinerary-sync",
		LogLevel:          "info",
	}
}

func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.SnapshotEndpoint, "SNAPSHOT_ENDPOINT")
	setStringFromEnv(&cfg.CompleteStopEndpoint, "COMPLETE_STOP_ENDPOINT")
	setStringFromEnv(&cfg.DriverID, "DRIVER_ID")

	setStringFromEnv(&cfg.RoutingEndpoint, "ROUTING_ENDPOINT")
	cfg.RoutingAPIKey = strings.TrimSpace(os.Getenv("ROUTING_API_KEY"))
	setDurationFromEnv(&cfg.RateLimitCooldown, "RATE_LIMIT_COOLDOWN", &errs)
	setDurationFromEnv(&cfg.GeometryCacheTTL, "GEOMETRY_CACHE_TTL", &errs)

	setDurationFromEnv(&cfg.PollInterval, "POLL_INTERVAL", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.SnapshotEndpoint == "" {
		errs = append(errs, fmt.Errorf("SNAPSHOT_ENDPOINT is required"))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be > 0"))
	}
	if cfg.RateLimitCooldown <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_COOLDOWN must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
