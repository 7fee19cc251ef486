package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	KafkaSensorTopic  string
	KafkaSinkTopic    string
	KafkaControlTopic string
	KafkaGroupID      string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Reverse-geocoding configuration.
	GeocodeEnabled     bool
	GeocodeMinInterval time.Duration
	GeocodeTimeout     time.Duration
	NominatimURL       string
	NominatimUserAgent string

	// Tracking configuration.
	FixAccuracyMaxMeters   float64
	ContinuousAutoOffHours float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	geocodeInterval, err := parseDuration("GEOCODE_MIN_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}

	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	maxAccuracy, err := parseFloat("FIX_ACCURACY_MAX_METERS", "100")
	if err != nil {
		return nil, err
	}

	autoOffHours, err := parseFloat("CONTINUOUS_AUTO_OFF_HOURS", "8")
	if err != nil {
		return nil, err
	}

	redisDB := 0
	if s := os.Getenv("REDIS_DB"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, errors.New("invalid REDIS_DB")
		}
		redisDB = n
	}

	geocodeEnabled := true
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		geocodeEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:      splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSensorTopic:  envOrDefault("KAFKA_SENSOR_TOPIC", "raw-sensor-events"),
		KafkaSinkTopic:    envOrDefault("KAFKA_SINK_TOPIC", "visit-updates"),
		KafkaControlTopic: envOrDefault("KAFKA_CONTROL_TOPIC", "sensor-control"),
		KafkaGroupID:      envOrDefault("KAFKA_GROUP_ID", "visit-tracker"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,

		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		GeocodeEnabled:     geocodeEnabled,
		GeocodeMinInterval: geocodeInterval,
		GeocodeTimeout:     geocodeTimeout,
		NominatimURL:       envOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: envOrDefault("NOMINATIM_USER_AGENT", "visit-tracker/1.0"),

		FixAccuracyMaxMeters:   maxAccuracy,
		ContinuousAutoOffHours: autoOffHours,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSensorTopic == "" {
		return nil, errors.New("KAFKA_SENSOR_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.FixAccuracyMaxMeters <= 0 {
		return nil, errors.New("FIX_ACCURACY_MAX_METERS must be positive")
	}
	if cfg.ContinuousAutoOffHours < 0 {
		return nil, errors.New("CONTINUOUS_AUTO_OFF_HOURS must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
