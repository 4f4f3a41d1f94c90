package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
	"github.com/vigimeteo/meteo-etl/internal/pipeline"
)

const forecastFixture = `{
	"timezone": "Europe/Paris",
	"current": {
		"time": "2024-05-15T10:15",
		"temperature_2m": 17.3,
		"relative_humidity_2m": 64,
		"is_day": 1,
		"weather_code": 2,
		"wind_speed_10m": 18.4
	},
	"hourly": {
		"time": ["2024-05-15T10:00", "2024-05-15T11:00", "2024-05-15T12:00", "2024-05-15T13:00"],
		"temperature_2m": [16.8, 17.4, 18.1, 999.0],
		"precipitation": [0, 0.2, 0, 0],
		"wind_speed_10m": [14, 15, 16, 17],
		"wind_gusts_10m": [30, 33, 35, 36],
		"weather_code": [2, 3, 3, 3],
		"is_day": [1, 1, 1, 1]
	},
	"daily": {
		"time": ["2024-05-15"],
		"sunrise": ["2024-05-15T06:04"],
		"sunset": ["2024-05-15T21:26"]
	}
}`

const archiveFixture = `{
	"timezone": "Europe/Paris",
	"daily": {
		"time": ["2024-04-01", "2024-04-02"],
		"temperature_2m_max": [14.2, 15.8],
		"temperature_2m_min": [5.1, 6.3],
		"precipitation_sum": [0, 1.4],
		"weather_code": [3, 61]
	}
}`

// --- mocks ---

type fakeFetcher struct {
	mu            sync.Mutex
	forecastBody  string
	archiveBody   string
	forecastErr   error
	archiveErr    error
	forecastCalls int
	archiveCalls  int
	sequence      []string
}

func (f *fakeFetcher) Forecast(_ context.Context, loc domain.Location, _ domain.ForecastOptions) (domain.RawPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastCalls++
	f.sequence = append(f.sequence, domain.EndpointForecast)
	if f.forecastErr != nil {
		return domain.RawPayload{}, f.forecastErr
	}
	return domain.RawPayload{
		Endpoint:     domain.EndpointForecast,
		LocationSlug: loc.Slug(),
		FetchedAt:    time.Date(2024, 5, 15, 10, 16, 0, 0, time.UTC),
		Body:         json.RawMessage(f.forecastBody),
	}, nil
}

func (f *fakeFetcher) Archive(_ context.Context, loc domain.Location, _ domain.DateRange) (domain.RawPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls++
	f.sequence = append(f.sequence, domain.EndpointArchive)
	if f.archiveErr != nil {
		return domain.RawPayload{}, f.archiveErr
	}
	return domain.RawPayload{
		Endpoint:     domain.EndpointArchive,
		LocationSlug: loc.Slug(),
		FetchedAt:    time.Date(2024, 5, 15, 3, 0, 0, 0, time.UTC),
		Body:         json.RawMessage(f.archiveBody),
	}, nil
}

type memRaw struct {
	mu     sync.Mutex
	saved  []domain.RawPayload
	failOn error
}

func (m *memRaw) Save(p domain.RawPayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return "", m.failOn
	}
	m.saved = append(m.saved, p)
	return fmt.Sprintf("raw-%d.json", len(m.saved)), nil
}

type memStore struct {
	mu         sync.Mutex
	locations  map[string]domain.Location
	current    map[string]domain.CurrentConditions
	hourly     map[string]domain.HourlyRecord
	daily      map[string]domain.DailyRecord
	historical map[string]domain.DailyRecord
	failOn     error
}

func newMemStore() *memStore {
	return &memStore{
		locations:  make(map[string]domain.Location),
		current:    make(map[string]domain.CurrentConditions),
		hourly:     make(map[string]domain.HourlyRecord),
		daily:      make(map[string]domain.DailyRecord),
		historical: make(map[string]domain.DailyRecord),
	}
}

func (m *memStore) UpsertLocation(_ context.Context, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return m.failOn
	}
	m.locations[loc.Slug()] = loc
	return nil
}

func (m *memStore) UpsertCurrent(_ context.Context, c domain.CurrentConditions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return m.failOn
	}
	m.current[c.LocationSlug] = c
	return nil
}

func (m *memStore) UpsertHourly(_ context.Context, records []domain.HourlyRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return 0, m.failOn
	}
	for _, rec := range records {
		m.hourly[rec.LocationSlug+"|"+rec.Timestamp.Format(domain.TimeLayout)] = rec
	}
	return len(records), nil
}

func (m *memStore) UpsertDaily(_ context.Context, records []domain.DailyRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return 0, m.failOn
	}
	for _, rec := range records {
		m.daily[rec.LocationSlug+"|"+rec.Date.Format(domain.DateLayout)] = rec
	}
	return len(records), nil
}

func (m *memStore) UpsertHistorical(_ context.Context, records []domain.DailyRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return 0, m.failOn
	}
	for _, rec := range records {
		m.historical[rec.LocationSlug+"|"+rec.Date.Format(domain.DateLayout)] = rec
	}
	return len(records), nil
}

type memExporter struct {
	mu      sync.Mutex
	batches []domain.ExportBatch
	err     error
}

func (m *memExporter) Export(_ context.Context, batch domain.ExportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, batch)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLocation() domain.Location {
	return domain.Location{
		Name:        "Paris",
		Country:     "France",
		CountryCode: "FR",
		Latitude:    48.85341,
		Longitude:   2.3488,
		Timezone:    "Europe/Paris",
	}
}

func forecastOpts() domain.ForecastOptions {
	return domain.ForecastOptions{ForecastDays: 7, PastDays: 2}
}

// --- ingestor tests ---

func TestIngestor_IngestForecast_HappyPath(t *testing.T) {
	fetcher := &fakeFetcher{forecastBody: forecastFixture}
	raw := &memRaw{}
	store := newMemStore()
	exporter := &memExporter{}
	ing := pipeline.NewIngestor(fetcher, raw, store, exporter, discardLogger(), newTestMetrics())

	res, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())
	require.NoError(t, err)

	assert.Equal(t, "paris-france", res.LocationSlug)
	assert.Equal(t, "raw-1.json", res.RawFile)
	assert.True(t, res.CurrentSaved)
	assert.Equal(t, 3, res.HourlyRows, "the 999° row is implausible and must be dropped")
	assert.Equal(t, 1, res.DailyRows)
	assert.Equal(t, 1, res.RowsDropped)
	assert.Equal(t, 1, res.Dropped[domain.DropReason("temperature_out_of_range")])

	// Raw payload is persisted verbatim.
	require.Len(t, raw.saved, 1)
	assert.JSONEq(t, forecastFixture, string(raw.saved[0].Body))

	// Store received location, snapshot, hourly rows and the aggregated day.
	assert.Contains(t, store.locations, "paris-france")
	assert.Contains(t, store.current, "paris-france")
	assert.Len(t, store.hourly, 3)
	require.Len(t, store.daily, 1)

	day := store.daily["paris-france|2024-05-15"]
	assert.Equal(t, 16.8, day.TemperatureMin)
	assert.Equal(t, 18.1, day.TemperatureMax)
	require.NotNil(t, day.Sunrise, "sunrise must be merged from the provider daily block")

	// The export batch mirrors exactly what was stored.
	require.Len(t, exporter.batches, 1)
	batch := exporter.batches[0]
	assert.Equal(t, domain.EndpointForecast, batch.Endpoint)
	require.NotNil(t, batch.Current)
	if diff := cmp.Diff(store.current["paris-france"], *batch.Current); diff != "" {
		t.Fatalf("export snapshot mismatch (-stored +exported):\n%s", diff)
	}
	assert.Len(t, batch.Hourly, 3)
	assert.Len(t, batch.Daily, 1)
}

func TestIngestor_IngestForecast_FetchErrorPropagates(t *testing.T) {
	fetcher := &fakeFetcher{forecastErr: domain.TransientUpstreamError{URL: "https://example.test", Attempts: 4}}
	raw := &memRaw{}
	store := newMemStore()
	ing := pipeline.NewIngestor(fetcher, raw, store, nil, discardLogger(), newTestMetrics())

	_, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())

	var transient domain.TransientUpstreamError
	require.ErrorAs(t, err, &transient)
	assert.Empty(t, raw.saved)
	assert.Empty(t, store.hourly)
}

func TestIngestor_IngestForecast_RawSaveFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{forecastBody: forecastFixture}
	raw := &memRaw{failOn: errors.New("disk full")}
	store := newMemStore()
	ing := pipeline.NewIngestor(fetcher, raw, store, nil, discardLogger(), newTestMetrics())

	_, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, store.hourly, "nothing may reach the store when the raw copy was not written")
}

func TestIngestor_IngestForecast_UndecodableBody(t *testing.T) {
	fetcher := &fakeFetcher{forecastBody: `<html>maintenance</html>`}
	raw := &memRaw{}
	store := newMemStore()
	ing := pipeline.NewIngestor(fetcher, raw, store, nil, discardLogger(), newTestMetrics())

	_, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())
	require.Error(t, err)

	assert.Len(t, raw.saved, 1, "the raw copy is written before parsing, even for a bad body")
	assert.Empty(t, store.hourly)
}

func TestIngestor_IngestForecast_ExportFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{forecastBody: forecastFixture}
	store := newMemStore()
	exporter := &memExporter{err: errors.New("brokers unreachable")}
	ing := pipeline.NewIngestor(fetcher, &memRaw{}, store, exporter, discardLogger(), newTestMetrics())

	res, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())
	require.NoError(t, err, "the store is the source of truth; a sink outage must not fail the ingest")
	assert.Equal(t, 3, res.HourlyRows)
	assert.Len(t, store.hourly, 3)
}

func TestIngestor_IngestArchive_HappyPath(t *testing.T) {
	fetcher := &fakeFetcher{archiveBody: archiveFixture}
	store := newMemStore()
	exporter := &memExporter{}
	ing := pipeline.NewIngestor(fetcher, &memRaw{}, store, exporter, discardLogger(), newTestMetrics())

	r := domain.DateRange{
		Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	res, err := ing.IngestArchive(context.Background(), testLocation(), r)
	require.NoError(t, err)

	assert.Equal(t, 2, res.HistoricalRows)
	assert.Len(t, store.historical, 2)
	assert.Empty(t, store.daily, "archive rows must not reach the forecast table")

	require.Len(t, exporter.batches, 1)
	assert.Len(t, exporter.batches[0].Historical, 2)
	assert.Nil(t, exporter.batches[0].Current)
}

func TestIngestor_Replay_ConvergesOnSameRows(t *testing.T) {
	fetcher := &fakeFetcher{forecastBody: forecastFixture}
	raw := &memRaw{}
	store := newMemStore()
	ing := pipeline.NewIngestor(fetcher, raw, store, nil, discardLogger(), newTestMetrics())

	_, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())
	require.NoError(t, err)

	before := make(map[string]domain.HourlyRecord, len(store.hourly))
	for k, v := range store.hourly {
		before[k] = v
	}

	// Replaying the very payload that was saved must not add or change rows.
	res, err := ing.Replay(context.Background(), raw.saved[0])
	require.NoError(t, err)
	assert.Equal(t, 3, res.HourlyRows)

	if diff := cmp.Diff(before, store.hourly); diff != "" {
		t.Fatalf("replay changed stored rows (-before +after):\n%s", diff)
	}
	assert.Len(t, raw.saved, 1, "replay must not write a second raw file")
}

func TestIngestor_Replay_UnknownEndpoint(t *testing.T) {
	ing := pipeline.NewIngestor(&fakeFetcher{}, &memRaw{}, newMemStore(), nil, discardLogger(), newTestMetrics())

	_, err := ing.Replay(context.Background(), domain.RawPayload{Endpoint: "climate", LocationSlug: "paris-france"})

	var invalid domain.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestIngestor_VigilanceRatingFromForecast(t *testing.T) {
	// One hour with 95 km/h gusts: the aggregated day must rate red.
	stormy := `{
		"hourly": {
			"time": ["2024-05-15T10:00", "2024-05-15T11:00"],
			"temperature_2m": [14.0, 13.5],
			"precipitation": [2.0, 4.5],
			"wind_speed_10m": [55, 60],
			"wind_gusts_10m": [80, 95],
			"weather_code": [61, 63],
			"is_day": [1, 1]
		}
	}`
	fetcher := &fakeFetcher{forecastBody: stormy}
	ing := pipeline.NewIngestor(fetcher, &memRaw{}, newMemStore(), nil, discardLogger(), newTestMetrics())

	res, err := ing.IngestForecast(context.Background(), testLocation(), forecastOpts())
	require.NoError(t, err)

	require.NotNil(t, res.Vigilance)
	assert.Equal(t, domain.LevelRed, res.Vigilance.Level)
	assert.Equal(t, domain.MetricWindGustsMax, res.Vigilance.Metric)
}
