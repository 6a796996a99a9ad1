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

// Supported telemetry sinks.
const (
	SinkKafka       = "kafka"
	SinkThingsBoard = "thingsboard"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	KafkaSourceEnabled bool

	BatchSize          int
	BatchFlushInterval time.Duration

	// Telemetry sink configuration.
	Sink               string
	ThingsBoardURL     string
	ThingsBoardToken   string
	ThingsBoardTimeout time.Duration

	// Forecast source configuration.
	ForecastBaseURL    string
	ForecastTimeout    time.Duration
	ForecastMaxRetries int
	ForecastCacheSize  int
	ForecastCacheTTL   time.Duration
	RedisURL           string

	// Enrichment configuration.
	WindowPastHours     int
	WindowFutureHours   int
	FallbackLatitude    float64
	FallbackLongitude   float64
	EnrichAllowDegraded bool

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// it never overrides variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	batchSize, err := parseInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	if batchSize < 1 || batchSize > 1000 {
		return nil, fmt.Errorf("invalid BATCH_SIZE %d: must be between 1 and 1000", batchSize)
	}

	tbTimeout, err := parseDuration("THINGSBOARD_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	forecastTimeout, err := parseDuration("FORECAST_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	forecastTTL, err := parseDuration("FORECAST_CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}
	forecastRetries, err := parseInt("FORECAST_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	pastHours, err := parseInt("WINDOW_PAST_HOURS", 24)
	if err != nil {
		return nil, err
	}
	futureHours, err := parseInt("WINDOW_FUTURE_HOURS", 24)
	if err != nil {
		return nil, err
	}
	fallbackLat, err := parseFloat("FALLBACK_LATITUDE", 51.5074)
	if err != nil {
		return nil, err
	}
	fallbackLon, err := parseFloat("FALLBACK_LONGITUDE", -0.1278)
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "device-samples"),
		KafkaSinkTopic:     envOrDefault("KAFKA_SINK_TOPIC", "enriched-telemetry"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "solar-enrichment"),
		KafkaSourceEnabled: envOrDefault("KAFKA_SOURCE_ENABLED", "true") == "true",

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		Sink:               strings.ToLower(envOrDefault("SINK", SinkKafka)),
		ThingsBoardURL:     strings.TrimRight(os.Getenv("THINGSBOARD_URL"), "/"),
		ThingsBoardToken:   os.Getenv("THINGSBOARD_TOKEN"),
		ThingsBoardTimeout: tbTimeout,

		ForecastBaseURL:    envOrDefault("FORECAST_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		ForecastTimeout:    forecastTimeout,
		ForecastMaxRetries: forecastRetries,
		ForecastCacheSize:  parsePositiveInt("FORECAST_CACHE_SIZE", 256),
		ForecastCacheTTL:   forecastTTL,
		RedisURL:           os.Getenv("REDIS_URL"),

		WindowPastHours:     pastHours,
		WindowFutureHours:   futureHours,
		FallbackLatitude:    fallbackLat,
		FallbackLongitude:   fallbackLon,
		EnrichAllowDegraded: envOrDefault("ENRICH_ALLOW_DEGRADED", "true") == "true",

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parsePositiveInt("MAPBOX_CACHE_SIZE", 1000),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Sink {
	case SinkKafka:
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	case SinkThingsBoard:
		if c.ThingsBoardURL == "" || c.ThingsBoardToken == "" {
			return errors.New("SINK=thingsboard requires THINGSBOARD_URL and THINGSBOARD_TOKEN")
		}
	default:
		return fmt.Errorf("invalid SINK %q: must be %q or %q", c.Sink, SinkKafka, SinkThingsBoard)
	}

	if (c.Sink == SinkKafka || c.KafkaSourceEnabled) && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceEnabled && c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.ForecastMaxRetries < 0 {
		return errors.New("invalid FORECAST_MAX_RETRIES: must not be negative")
	}
	if c.WindowPastHours < 0 || c.WindowFutureHours < 0 {
		return errors.New("invalid WINDOW_PAST_HOURS or WINDOW_FUTURE_HOURS: must not be negative")
	}
	if c.FallbackLatitude < -90 || c.FallbackLatitude > 90 {
		return errors.New("invalid FALLBACK_LATITUDE: must be within [-90, 90]")
	}
	if c.FallbackLongitude < -180 || c.FallbackLongitude > 180 {
		return errors.New("invalid FALLBACK_LONGITUDE: must be within [-180, 180]")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
