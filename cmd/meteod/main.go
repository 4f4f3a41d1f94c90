package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/vigimeteo/meteo-etl/internal/adapter/http"
	kafkaadapter "github.com/vigimeteo/meteo-etl/internal/adapter/kafka"
	"github.com/vigimeteo/meteo-etl/internal/adapter/openmeteo"
	"github.com/vigimeteo/meteo-etl/internal/adapter/store"
	"github.com/vigimeteo/meteo-etl/internal/config"
	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
	"github.com/vigimeteo/meteo-etl/internal/pipeline"
	"github.com/vigimeteo/meteo-etl/internal/upstream"
)

func main() {
	_ = godotenv.Load() // a .env file is optional

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	rawStore, err := store.NewRaw(cfg.RawDir, logger)
	if err != nil {
		logger.Error("failed to open raw payload dir", "dir", cfg.RawDir, "error", err)
		os.Exit(1)
	}
	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	httpClient := upstream.New(logger, metrics, upstream.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.UpstreamTimeout,
		RetryCount:   cfg.UpstreamRetries,
		RetryWait:    cfg.UpstreamRetryWait,
		RetryMaxWait: cfg.UpstreamRetryMaxWait,
		RPS:          cfg.UpstreamRPS,
	})
	client := openmeteo.NewClient(httpClient, logger, metrics)
	geocoder := openmeteo.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	locations, err := resolveLocations(ctx, geocoder, cfg, logger)
	if err != nil {
		logger.Error("failed to resolve locations", "error", err)
		os.Exit(1)
	}

	var exporter pipeline.Exporter
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		exporter = writer
		logger.Info("kafka export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka export disabled")
	}

	ingestor := pipeline.NewIngestor(client, rawStore, db, exporter, logger, metrics)
	scheduler := pipeline.NewScheduler(ingestor, locations, pipeline.SchedulerOptions{
		Interval: cfg.FetchInterval,
		Forecast: domain.ForecastOptions{
			ForecastDays: cfg.ForecastDays,
			PastDays:     cfg.PastDays,
		},
		BackfillDays: cfg.BackfillDays,
		MaxInflight:  cfg.MaxInflight,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, db, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// resolveLocations geocodes every configured place name once at startup.
// Places that resolve to nothing are skipped with a warning; startup fails
// only when nothing resolves at all.
func resolveLocations(ctx context.Context, geocoder domain.Geocoder, cfg *config.Config, logger *slog.Logger) ([]domain.Location, error) {
	locations := make([]domain.Location, 0, len(cfg.Locations))
	for _, spec := range cfg.Locations {
		country := spec.CountryCode
		if country == "" {
			country = cfg.GeocodeCountry
		}
		candidates, err := geocoder.Geocode(ctx, domain.GeocodeQuery{
			Name:     spec.Name,
			Language: cfg.GeocodeLanguage,
			Country:  country,
			Count:    1,
		})
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			logger.Warn("location not found, skipping", "name", spec.Name, "country", country)
			continue
		}
		loc := candidates[0]
		logger.Info("location resolved",
			"name", loc.Name,
			"country", loc.Country,
			"slug", loc.Slug(),
			"latitude", loc.Latitude,
			"longitude", loc.Longitude,
		)
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		return nil, errors.New("no configured location could be resolved")
	}
	return locations, nil
}
