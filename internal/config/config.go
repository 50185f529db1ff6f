package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/eonet-explorer/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// EONET catalog configuration.
	EONETBaseURL string
	EONETTimeout time.Duration
	EventLimit   int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	ThemeFile          string
	ThemeDefault       string
	SessionIdleTimeout time.Duration

	// Layer-set feed configuration.
	KafkaEnabled  bool
	KafkaBrokers  []string
	KafkaTopic    string
	FeedBatchSize int
	FeedQueueSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	eonetTimeout, err := parsePositiveDuration("EONET_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	idleTimeout, err := parsePositiveDuration("SESSION_IDLE_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	eventLimit, err := domain.ParseLimit(os.Getenv("EVENT_LIMIT"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_LIMIT: %w", err)
	}

	feedBatchSize, err := parsePositiveInt("FEED_BATCH_SIZE", 20)
	if err != nil {
		return nil, err
	}
	feedQueueSize, err := parsePositiveInt("FEED_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		EONETBaseURL: sharedcfg.EnvOrDefault("EONET_BASE_URL", "https://eonet.gsfc.nasa.gov/api/v3"),
		EONETTimeout: eonetTimeout,
		EventLimit:   eventLimit,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		ThemeFile:          sharedcfg.EnvOrDefault("THEME_FILE", "theme.json"),
		ThemeDefault:       sharedcfg.EnvOrDefault("THEME_DEFAULT", domain.DefaultTheme),
		SessionIdleTimeout: idleTimeout,

		KafkaEnabled:  os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "eonet-layer-sets"),
		FeedBatchSize: feedBatchSize,
		FeedQueueSize: feedQueueSize,
	}

	if cfg.EONETBaseURL == "" {
		return nil, errors.New("EONET_BASE_URL is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if err := domain.ValidateTheme(cfg.ThemeDefault); err != nil {
		return nil, fmt.Errorf("invalid THEME_DEFAULT: %w", err)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
