// Package config loads service settings from environment variables, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSignalTopic string
	KafkaZoneTopic   string
	KafkaGroupID     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabasePath string

	IngestWorkers int
	BatchSize     int

	// Clustering parameters.
	ClusterEpsilonMeters float64
	ClusterMinPoints     int
	ClusterMinConfidence float64
	ClusterWindow        time.Duration
	ClusterSchedule      string

	// Zone lifecycle.
	AutoAlertThreshold float64
	ZoneTTL            time.Duration
	SweepSchedule      string

	// Weather provider (Open-Meteo, no key needed).
	WeatherTimeout   time.Duration
	WeatherCacheSize int
	WeatherCacheTTL  time.Duration

	// Nominatim geocoding, feature-flagged via GEOCODING_ENABLED.
	GeocodingEnabled bool
	GeocoderAgent    string
	GeocoderTimeout  time.Duration

	// Trained text classifier; enabled when a key is present.
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is merged in first and
// never overrides real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	clusterWindow, err := parseDuration("CLUSTER_WINDOW", "3h")
	if err != nil {
		return nil, err
	}
	zoneTTL, err := parseDuration("ZONE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	weatherTimeout, err := parseDuration("WEATHER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	weatherCacheTTL, err := parseDuration("WEATHER_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:     splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSignalTopic: envOrDefault("KAFKA_SIGNAL_TOPIC", "raw-hazard-signals"),
		KafkaZoneTopic:   envOrDefault("KAFKA_ZONE_TOPIC", "hazard-zone-events"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "hazard-engine"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabasePath: envOrDefault("DATABASE_PATH", "hazard-engine.db"),

		IngestWorkers: envIntOrDefault("INGEST_WORKERS", 4),
		BatchSize:     envIntOrDefault("BATCH_SIZE", 50),

		ClusterEpsilonMeters: envFloatOrDefault("CLUSTER_EPSILON_M", 500),
		ClusterMinPoints:     envIntOrDefault("CLUSTER_MIN_POINTS", 3),
		ClusterMinConfidence: envFloatOrDefault("CLUSTER_MIN_CONFIDENCE", 0.4),
		ClusterWindow:        clusterWindow,
		ClusterSchedule:      envOrDefault("CLUSTER_SCHEDULE", "@every 30s"),

		AutoAlertThreshold: envFloatOrDefault("AUTO_ALERT_THRESHOLD", 0.75),
		ZoneTTL:            zoneTTL,
		SweepSchedule:      envOrDefault("SWEEP_SCHEDULE", "@every 1m"),

		WeatherTimeout:   weatherTimeout,
		WeatherCacheSize: envIntOrDefault("WEATHER_CACHE_SIZE", 1000),
		WeatherCacheTTL:  weatherCacheTTL,

		GeocodingEnabled: envOrDefault("GEOCODING_ENABLED", "true") == "true",
		GeocoderAgent:    envOrDefault("GEOCODER_USER_AGENT", "atlas-alert-hazard-engine/1.0"),
		GeocoderTimeout:  geocoderTimeout,

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSignalTopic == "" {
		return nil, errors.New("KAFKA_SIGNAL_TOPIC is required")
	}
	if cfg.KafkaZoneTopic == "" {
		return nil, errors.New("KAFKA_ZONE_TOPIC is required")
	}
	if cfg.IngestWorkers < 1 {
		return nil, errors.New("INGEST_WORKERS must be at least 1")
	}
	if cfg.ClusterMinPoints < 2 {
		return nil, errors.New("CLUSTER_MIN_POINTS must be at least 2")
	}
	if cfg.AutoAlertThreshold <= 0 || cfg.AutoAlertThreshold > 1 {
		return nil, errors.New("AUTO_ALERT_THRESHOLD must be in (0, 1]")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func envFloatOrDefault(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
