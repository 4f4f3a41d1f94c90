// Package pipeline orchestrates the fetch, persist, parse, clean, upsert and
// export stages for every configured location.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
)

// WeatherFetcher fetches raw payloads from the upstream provider.
type WeatherFetcher interface {
	Forecast(ctx context.Context, loc domain.Location, opts domain.ForecastOptions) (domain.RawPayload, error)
	Archive(ctx context.Context, loc domain.Location, r domain.DateRange) (domain.RawPayload, error)
}

// RawSaver persists a payload verbatim before any parsing touches it.
type RawSaver interface {
	Save(p domain.RawPayload) (string, error)
}

// RecordStore persists normalized records.
type RecordStore interface {
	UpsertLocation(ctx context.Context, loc domain.Location) error
	UpsertCurrent(ctx context.Context, c domain.CurrentConditions) error
	UpsertHourly(ctx context.Context, records []domain.HourlyRecord) (int, error)
	UpsertDaily(ctx context.Context, records []domain.DailyRecord) (int, error)
	UpsertHistorical(ctx context.Context, records []domain.DailyRecord) (int, error)
}

// Exporter publishes an ingested batch downstream.
type Exporter interface {
	Export(ctx context.Context, batch domain.ExportBatch) error
}

// IngestResult reports what one ingest wrote and what cleaning removed.
type IngestResult struct {
	LocationSlug   string
	Endpoint       string
	RawFile        string
	CurrentSaved   bool
	HourlyRows     int
	DailyRows      int
	HistoricalRows int
	RowsDropped    int
	FieldsCleared  int
	Dropped        map[domain.DropReason]int
	Vigilance      *domain.VigilanceRating
}

// Ingestor runs a single location's payload through the whole pipeline.
// Export failures are logged but never fail the ingest: the store, not the
// sink, is the source of truth.
type Ingestor struct {
	fetcher  WeatherFetcher
	raw      RawSaver
	store    RecordStore
	exporter Exporter // nil disables export
	rules    []domain.VigilanceRule
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewIngestor creates an Ingestor. exporter may be nil.
func NewIngestor(fetcher WeatherFetcher, raw RawSaver, store RecordStore, exporter Exporter,
	logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		fetcher:  fetcher,
		raw:      raw,
		store:    store,
		exporter: exporter,
		rules:    domain.DefaultVigilanceRules(),
		logger:   logger,
		metrics:  metrics,
	}
}

// IngestForecast fetches and ingests one forecast payload for loc.
func (i *Ingestor) IngestForecast(ctx context.Context, loc domain.Location, opts domain.ForecastOptions) (IngestResult, error) {
	start := time.Now()

	payload, err := i.fetcher.Forecast(ctx, loc, opts)
	if err != nil {
		return i.finish(domain.EndpointForecast, "fetch_error", start,
			IngestResult{LocationSlug: loc.Slug(), Endpoint: domain.EndpointForecast}, err)
	}
	res, err := i.persistAndApply(ctx, loc, payload)
	if err != nil {
		return i.finish(domain.EndpointForecast, "error", start, res, err)
	}
	return i.finish(domain.EndpointForecast, "success", start, res, nil)
}

// IngestArchive fetches and ingests historical dailies for loc over r.
func (i *Ingestor) IngestArchive(ctx context.Context, loc domain.Location, r domain.DateRange) (IngestResult, error) {
	start := time.Now()

	payload, err := i.fetcher.Archive(ctx, loc, r)
	if err != nil {
		return i.finish(domain.EndpointArchive, "fetch_error", start,
			IngestResult{LocationSlug: loc.Slug(), Endpoint: domain.EndpointArchive}, err)
	}
	res, err := i.persistAndApply(ctx, loc, payload)
	if err != nil {
		return i.finish(domain.EndpointArchive, "error", start, res, err)
	}
	return i.finish(domain.EndpointArchive, "success", start, res, nil)
}

// Replay re-ingests a previously stored payload. Nothing is fetched and no
// raw file is written; parsing, cleaning and upserting run exactly as they
// would have online, so a replayed store converges on the same rows.
func (i *Ingestor) Replay(ctx context.Context, p domain.RawPayload) (IngestResult, error) {
	return i.apply(ctx, p)
}

func (i *Ingestor) persistAndApply(ctx context.Context, loc domain.Location, p domain.RawPayload) (IngestResult, error) {
	name, err := i.raw.Save(p)
	if err != nil {
		// The raw file is the replay source; without it the fetch is not
		// reproducible, so the ingest stops here.
		return IngestResult{LocationSlug: p.LocationSlug, Endpoint: p.Endpoint}, fmt.Errorf("persist raw payload: %w", err)
	}
	if err := i.store.UpsertLocation(ctx, loc); err != nil {
		return IngestResult{LocationSlug: p.LocationSlug, Endpoint: p.Endpoint, RawFile: name}, err
	}
	res, err := i.apply(ctx, p)
	res.RawFile = name
	return res, err
}

// apply parses, cleans and upserts one payload and exports the outcome.
func (i *Ingestor) apply(ctx context.Context, p domain.RawPayload) (IngestResult, error) {
	switch p.Endpoint {
	case domain.EndpointForecast:
		return i.applyForecast(ctx, p)
	case domain.EndpointArchive:
		return i.applyArchive(ctx, p)
	default:
		return IngestResult{LocationSlug: p.LocationSlug, Endpoint: p.Endpoint},
			domain.InvalidRequestError{Op: "ingest", Reason: fmt.Sprintf("unknown payload endpoint %q", p.Endpoint)}
	}
}

func (i *Ingestor) applyForecast(ctx context.Context, p domain.RawPayload) (IngestResult, error) {
	res := IngestResult{LocationSlug: p.LocationSlug, Endpoint: p.Endpoint}

	data, report, err := domain.ParseForecastPayload(p)
	if err != nil {
		return res, err
	}
	i.recordCleaning(p, report, &res)

	if data.Current != nil {
		if err := i.store.UpsertCurrent(ctx, *data.Current); err != nil {
			return res, err
		}
		res.CurrentSaved = true
	}

	n, err := i.store.UpsertHourly(ctx, data.Hourly)
	if err != nil {
		return res, err
	}
	res.HourlyRows = n
	i.metrics.RecordsWritten.WithLabelValues("hourly").Add(float64(n))

	daily := domain.MergeSunTimes(domain.BuildDailyRecords(data.Hourly), data.Sun)
	n, err = i.store.UpsertDaily(ctx, daily)
	if err != nil {
		return res, err
	}
	res.DailyRows = n
	i.metrics.RecordsWritten.WithLabelValues("daily").Add(float64(n))

	res.Vigilance = i.rateVigilance(p.LocationSlug, daily)

	i.export(ctx, domain.ExportBatch{
		LocationSlug: p.LocationSlug,
		Endpoint:     p.Endpoint,
		IngestedAt:   domain.Now().UTC(),
		Current:      data.Current,
		Hourly:       data.Hourly,
		Daily:        daily,
	})
	return res, nil
}

func (i *Ingestor) applyArchive(ctx context.Context, p domain.RawPayload) (IngestResult, error) {
	res := IngestResult{LocationSlug: p.LocationSlug, Endpoint: p.Endpoint}

	records, report, err := domain.ParseArchivePayload(p)
	if err != nil {
		return res, err
	}
	i.recordCleaning(p, report, &res)

	n, err := i.store.UpsertHistorical(ctx, records)
	if err != nil {
		return res, err
	}
	res.HistoricalRows = n
	i.metrics.RecordsWritten.WithLabelValues("historical").Add(float64(n))

	i.export(ctx, domain.ExportBatch{
		LocationSlug: p.LocationSlug,
		Endpoint:     p.Endpoint,
		IngestedAt:   domain.Now().UTC(),
		Historical:   records,
	})
	return res, nil
}

// recordCleaning copies the clean report into the result, metrics and log.
func (i *Ingestor) recordCleaning(p domain.RawPayload, report domain.CleanReport, res *IngestResult) {
	res.RowsDropped = report.RowsDropped
	res.FieldsCleared = report.FieldsCleared
	res.Dropped = report.Reasons

	for reason, n := range report.Reasons {
		i.metrics.RecordsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	if report.HasDrops() {
		i.logger.Warn("cleaning removed implausible data",
			"location", p.LocationSlug,
			"endpoint", p.Endpoint,
			"rows_dropped", report.RowsDropped,
			"fields_cleared", report.FieldsCleared,
			"reasons", report.Reasons,
		)
	}
}

// rateVigilance evaluates the daily records and publishes the worst level on
// the per-location gauge.
func (i *Ingestor) rateVigilance(slug string, daily []domain.DailyRecord) *domain.VigilanceRating {
	if len(daily) == 0 {
		return nil
	}
	worst := domain.WorstRating(domain.EvaluateDays(daily, i.rules))
	i.metrics.VigilanceLevel.WithLabelValues(slug).Set(float64(worst.Level))
	if worst.Level >= domain.LevelOrange {
		i.logger.Warn("vigilance raised",
			"location", slug,
			"date", worst.Date.Format(domain.DateLayout),
			"level", worst.Level.String(),
			"reason", worst.Reason,
		)
	}
	return &worst
}

func (i *Ingestor) export(ctx context.Context, batch domain.ExportBatch) {
	if i.exporter == nil {
		return
	}
	if err := i.exporter.Export(ctx, batch); err != nil {
		i.metrics.ExportErrors.Inc()
		i.logger.Error("export failed", "location", batch.LocationSlug, "endpoint", batch.Endpoint, "error", err)
		return
	}
	records := len(batch.Hourly) + len(batch.Daily) + len(batch.Historical)
	if batch.Current != nil {
		records++
	}
	i.metrics.ExportBatches.Inc()
	i.metrics.ExportRecords.Add(float64(records))
}

// finish stamps run metrics and logs the outcome of one ingest.
func (i *Ingestor) finish(endpoint, outcome string, start time.Time, res IngestResult, err error) (IngestResult, error) {
	i.metrics.IngestRuns.WithLabelValues(endpoint, outcome).Inc()
	i.metrics.IngestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		i.logger.Error("ingest failed",
			"location", res.LocationSlug,
			"endpoint", endpoint,
			"outcome", outcome,
			"error", err,
		)
		return res, err
	}
	i.logger.Info("ingest complete",
		"location", res.LocationSlug,
		"endpoint", endpoint,
		"raw_file", res.RawFile,
		"current", res.CurrentSaved,
		"hourly_rows", res.HourlyRows,
		"daily_rows", res.DailyRows,
		"historical_rows", res.HistoricalRows,
		"rows_dropped", res.RowsDropped,
		"duration", time.Since(start),
	)
	return res, nil
}
