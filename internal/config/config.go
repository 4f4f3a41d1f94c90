package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocationSpec names one place to ingest. Entries come from the LOCATIONS
// variable as "Name,CC" pairs; the country code narrows geocoding and may be
// empty.
type LocationSpec struct {
	Name        string
	CountryCode string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Storage paths. RawDir and DBPath default to subpaths of DataDir.
	DataDir string
	RawDir  string
	DBPath  string

	// Ingest scope and cadence.
	Locations     []LocationSpec
	FetchInterval time.Duration
	ForecastDays  int
	PastDays      int
	BackfillDays  int
	MaxInflight   int

	// Geocoding.
	GeocodeLanguage  string
	GeocodeCountry   string
	GeocodeCacheSize int

	// Upstream HTTP behavior.
	UserAgent            string
	UpstreamTimeout      time.Duration
	UpstreamRetries      int
	UpstreamRetryWait    time.Duration
	UpstreamRetryMaxWait time.Duration
	UpstreamRPS          float64

	// Optional Kafka export sink.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// defaultLocations seeds a fresh install with a spread of French cities.
const defaultLocations = "Paris,FR;Brest,FR;Lille,FR;Lyon,FR;Marseille,FR"

// Load reads configuration from environment variables, applying defaults
// where unset. Errors name the offending variable.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parsePositiveDuration("FETCH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := parsePositiveDuration("UPSTREAM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	retryWait, err := parsePositiveDuration("UPSTREAM_RETRY_WAIT", "400ms")
	if err != nil {
		return nil, err
	}
	retryMaxWait, err := parsePositiveDuration("UPSTREAM_RETRY_MAX_WAIT", "5s")
	if err != nil {
		return nil, err
	}

	forecastDays, err := parseIntInRange("FORECAST_DAYS", 7, 1, 16)
	if err != nil {
		return nil, err
	}
	pastDays, err := parseIntInRange("PAST_DAYS", 2, 0, 92)
	if err != nil {
		return nil, err
	}
	backfillDays, err := parseIntInRange("ARCHIVE_BACKFILL_DAYS", 30, 0, 3650)
	if err != nil {
		return nil, err
	}
	maxInflight, err := parseIntInRange("MAX_INFLIGHT_FETCHES", 2, 1, 32)
	if err != nil {
		return nil, err
	}
	retries, err := parseIntInRange("UPSTREAM_RETRIES", 3, 1, 10)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntInRange("GEOCODE_CACHE_SIZE", 1000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}

	rps, err := parseRPS("UPSTREAM_RPS", "1")
	if err != nil {
		return nil, err
	}

	locations, err := parseLocations(envOrDefault("LOCATIONS", defaultLocations))
	if err != nil {
		return nil, err
	}

	dataDir := envOrDefault("DATA_DIR", "data")

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir: dataDir,
		RawDir:  envOrDefault("RAW_DIR", filepath.Join(dataDir, "raw")),
		DBPath:  envOrDefault("DB_PATH", filepath.Join(dataDir, "meteo.db")),

		Locations:     locations,
		FetchInterval: fetchInterval,
		ForecastDays:  forecastDays,
		PastDays:      pastDays,
		BackfillDays:  backfillDays,
		MaxInflight:   maxInflight,

		GeocodeLanguage:  envOrDefault("GEOCODE_LANGUAGE", "fr"),
		GeocodeCountry:   os.Getenv("GEOCODE_COUNTRY"),
		GeocodeCacheSize: cacheSize,

		UserAgent:            os.Getenv("USER_AGENT"),
		UpstreamTimeout:      upstreamTimeout,
		UpstreamRetries:      retries,
		UpstreamRetryWait:    retryWait,
		UpstreamRetryMaxWait: retryMaxWait,
		UpstreamRPS:          rps,

		KafkaEnabled: envOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "weather-records"),
	}

	if len(cfg.Locations) == 0 {
		return nil, errors.New("LOCATIONS must name at least one place")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: want a positive duration", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: want an integer in [%d, %d]", key, min, max)
	}
	return n, nil
}

func parseRPS(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, def), 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: want a non-negative number", key)
	}
	return f, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// parseLocations splits "Name,CC;Name,CC" entries. The country code is
// optional; a bare name geocodes worldwide (subject to GEOCODE_COUNTRY).
func parseLocations(s string) ([]LocationSpec, error) {
	var out []LocationSpec
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, code, _ := strings.Cut(entry, ",")
		name = strings.TrimSpace(name)
		code = strings.ToUpper(strings.TrimSpace(code))
		if name == "" {
			return nil, fmt.Errorf("invalid LOCATIONS entry %q: want \"Name\" or \"Name,CC\"", entry)
		}
		if code != "" && len(code) != 2 {
			return nil, fmt.Errorf("invalid LOCATIONS entry %q: country code must be two letters", entry)
		}
		out = append(out, LocationSpec{Name: name, CountryCode: code})
	}
	return out, nil
}
