package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
)

// SchedulerOptions configure the periodic ingest loop.
type SchedulerOptions struct {
	Interval     time.Duration
	Forecast     domain.ForecastOptions
	BackfillDays int // archive days fetched once at startup; 0 disables
	MaxInflight  int // concurrent location fetches
}

// Scheduler runs the ingest pass for every configured location on a fixed
// interval. The first pass starts immediately; readiness flips once at least
// one location has been ingested successfully.
type Scheduler struct {
	ingestor  *Ingestor
	locations []domain.Location
	opts      SchedulerOptions
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewScheduler creates a Scheduler over the given locations.
func NewScheduler(ingestor *Ingestor, locations []domain.Location, opts SchedulerOptions,
	logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if opts.MaxInflight < 1 {
		opts.MaxInflight = 1
	}
	return &Scheduler{
		ingestor:  ingestor,
		locations: locations,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one location has been ingested,
// or an error describing why the service is not yet ready.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no location has been ingested yet")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"locations", len(s.locations),
		"interval", s.opts.Interval,
		"forecast_days", s.opts.Forecast.ForecastDays,
		"backfill_days", s.opts.BackfillDays,
	)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	if s.opts.BackfillDays > 0 {
		s.backfill(ctx)
	}

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}

		start := time.Now()
		succeeded := s.forEachLocation(ctx, func(ctx context.Context, loc domain.Location) error {
			_, err := s.ingestor.IngestForecast(ctx, loc, s.opts.Forecast)
			return err
		})
		if succeeded > 0 {
			s.ready.Store(true)
		}
		s.logger.Info("ingest pass finished",
			"succeeded", succeeded,
			"locations", len(s.locations),
			"duration", time.Since(start),
		)

		if !sleepWithContext(ctx, s.opts.Interval) {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// backfill ingests archive history once at startup. The range ends today;
// days the archive has not caught up with yet arrive as null rows and are
// dropped during cleaning.
func (s *Scheduler) backfill(ctx context.Context) {
	end := domain.Today()
	r := domain.DateRange{Start: end.AddDate(0, 0, -s.opts.BackfillDays), End: end}

	s.logger.Info("archive backfill starting",
		"start", r.Start.Format(domain.DateLayout),
		"end", r.End.Format(domain.DateLayout),
	)
	succeeded := s.forEachLocation(ctx, func(ctx context.Context, loc domain.Location) error {
		_, err := s.ingestor.IngestArchive(ctx, loc, r)
		return err
	})
	s.logger.Info("archive backfill finished", "succeeded", succeeded, "locations", len(s.locations))
}

// forEachLocation fans the work out over the locations, at most MaxInflight
// at a time, and returns how many calls succeeded. Individual failures are
// already logged by the ingestor; the pass carries on without them.
func (s *Scheduler) forEachLocation(ctx context.Context, fn func(context.Context, domain.Location) error) int {
	sem := make(chan struct{}, s.opts.MaxInflight)
	var wg sync.WaitGroup
	var succeeded atomic.Int64

	for _, loc := range s.locations {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(loc domain.Location) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(ctx, loc); err == nil {
				succeeded.Add(1)
			}
		}(loc)
	}
	wg.Wait()
	return int(succeeded.Load())
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
