package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigimeteo/meteo-etl/internal/domain"
)

const historicalTable = "historical_daily_records"
const dailyTable = "daily_records"

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	slug         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	country      TEXT NOT NULL,
	country_code TEXT NOT NULL,
	admin1       TEXT NOT NULL DEFAULT '',
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	timezone     TEXT NOT NULL,
	elevation    REAL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS current_conditions (
	location_slug        TEXT PRIMARY KEY,
	observed_at          TEXT NOT NULL,
	temperature          REAL NOT NULL,
	apparent_temperature REAL,
	humidity             REAL,
	precipitation        REAL,
	rain                 REAL,
	showers              REAL,
	snowfall             REAL,
	weather_code         INTEGER NOT NULL,
	cloud_cover          REAL,
	wind_speed           REAL,
	wind_gusts           REAL,
	wind_direction       REAL,
	is_day               INTEGER NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hourly_records (
	location_slug             TEXT NOT NULL,
	timestamp                 TEXT NOT NULL,
	temperature               REAL NOT NULL,
	apparent_temperature      REAL,
	precipitation             REAL NOT NULL,
	precipitation_probability REAL,
	wind_speed                REAL NOT NULL,
	wind_gusts                REAL,
	weather_code              INTEGER NOT NULL,
	is_day                    INTEGER NOT NULL,
	updated_at                TEXT NOT NULL,
	PRIMARY KEY (location_slug, timestamp)
);

CREATE TABLE IF NOT EXISTS daily_records (
	location_slug                 TEXT NOT NULL,
	date                          TEXT NOT NULL,
	temperature_min               REAL NOT NULL,
	temperature_max               REAL NOT NULL,
	precipitation_sum             REAL NOT NULL,
	precipitation_probability_max REAL,
	wind_speed_max                REAL,
	wind_gusts_max                REAL,
	weather_code                  INTEGER NOT NULL,
	sunrise                       TEXT,
	sunset                        TEXT,
	updated_at                    TEXT NOT NULL,
	PRIMARY KEY (location_slug, date)
);

CREATE TABLE IF NOT EXISTS historical_daily_records (
	location_slug                 TEXT NOT NULL,
	date                          TEXT NOT NULL,
	temperature_min               REAL NOT NULL,
	temperature_max               REAL NOT NULL,
	precipitation_sum             REAL NOT NULL,
	precipitation_probability_max REAL,
	wind_speed_max                REAL,
	wind_gusts_max                REAL,
	weather_code                  INTEGER NOT NULL,
	sunrise                       TEXT,
	sunset                        TEXT,
	updated_at                    TEXT NOT NULL,
	PRIMARY KEY (location_slug, date)
);
`

// DB is the normalized record store on SQLite. Writes are upserts keyed by
// (location, timestamp), so re-ingesting the same payload converges on the
// same rows instead of duplicating them.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// LocationSummary is one location's row counts for the status endpoint.
type LocationSummary struct {
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Country        string    `json:"country"`
	HourlyRows     int       `json:"hourly_rows"`
	DailyRows      int       `json:"daily_rows"`
	HistoricalRows int       `json:"historical_rows"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Open opens (creating if needed) the SQLite database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc's driver serializes writers; a single connection avoids
	// SQLITE_BUSY when the scheduler and a CLI touch the file together.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("sqlite pragma failed", "pragma", pragma, "error", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &DB{db: db, logger: logger}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// UpsertLocation inserts or refreshes a location row.
func (d *DB) UpsertLocation(ctx context.Context, loc domain.Location) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO locations (slug, name, country, country_code, admin1, latitude, longitude, timezone, elevation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			country_code = excluded.country_code,
			admin1 = excluded.admin1,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			elevation = excluded.elevation,
			updated_at = excluded.updated_at`,
		loc.Slug(), loc.Name, loc.Country, loc.CountryCode, loc.Admin1,
		loc.Latitude, loc.Longitude, loc.Timezone, optFloat(loc.Elevation), nowText())
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.Slug(), err)
	}
	return nil
}

// UpsertCurrent replaces the location's current conditions snapshot.
func (d *DB) UpsertCurrent(ctx context.Context, c domain.CurrentConditions) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO current_conditions (location_slug, observed_at, temperature, apparent_temperature,
			humidity, precipitation, rain, showers, snowfall, weather_code, cloud_cover,
			wind_speed, wind_gusts, wind_direction, is_day, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_slug) DO UPDATE SET
			observed_at = excluded.observed_at,
			temperature = excluded.temperature,
			apparent_temperature = excluded.apparent_temperature,
			humidity = excluded.humidity,
			precipitation = excluded.precipitation,
			rain = excluded.rain,
			showers = excluded.showers,
			snowfall = excluded.snowfall,
			weather_code = excluded.weather_code,
			cloud_cover = excluded.cloud_cover,
			wind_speed = excluded.wind_speed,
			wind_gusts = excluded.wind_gusts,
			wind_direction = excluded.wind_direction,
			is_day = excluded.is_day,
			updated_at = excluded.updated_at`,
		c.LocationSlug, c.ObservedAt.Format(domain.TimeLayout), c.Temperature,
		optFloat(c.ApparentTemperature), optFloat(c.Humidity), optFloat(c.Precipitation),
		optFloat(c.Rain), optFloat(c.Showers), optFloat(c.Snowfall), c.WeatherCode,
		optFloat(c.CloudCover), optFloat(c.WindSpeed), optFloat(c.WindGusts),
		optFloat(c.WindDirection), c.IsDay, nowText())
	if err != nil {
		return fmt.Errorf("upsert current conditions for %s: %w", c.LocationSlug, err)
	}
	return nil
}

// UpsertHourly writes hourly rows in one transaction and returns how many
// were written.
func (d *DB) UpsertHourly(ctx context.Context, records []domain.HourlyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin hourly upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly_records (location_slug, timestamp, temperature, apparent_temperature,
			precipitation, precipitation_probability, wind_speed, wind_gusts, weather_code, is_day, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_slug, timestamp) DO UPDATE SET
			temperature = excluded.temperature,
			apparent_temperature = excluded.apparent_temperature,
			precipitation = excluded.precipitation,
			precipitation_probability = excluded.precipitation_probability,
			wind_speed = excluded.wind_speed,
			wind_gusts = excluded.wind_gusts,
			weather_code = excluded.weather_code,
			is_day = excluded.is_day,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare hourly upsert: %w", err)
	}
	defer stmt.Close()

	stamp := nowText()
	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.LocationSlug, rec.Timestamp.Format(domain.TimeLayout), rec.Temperature,
			optFloat(rec.ApparentTemperature), rec.Precipitation, optFloat(rec.PrecipitationProbability),
			rec.WindSpeed, optFloat(rec.WindGusts), rec.WeatherCode, rec.IsDay, stamp)
		if err != nil {
			return 0, fmt.Errorf("upsert hourly row %s %s: %w", rec.LocationSlug, rec.Timestamp.Format(domain.TimeLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit hourly upsert: %w", err)
	}
	return len(records), nil
}

// UpsertDaily writes forecast daily rows.
func (d *DB) UpsertDaily(ctx context.Context, records []domain.DailyRecord) (int, error) {
	return d.upsertDaily(ctx, dailyTable, records)
}

// UpsertHistorical writes archive daily rows. They live in their own table
// because observed history should not be overwritten by forecast aggregates.
func (d *DB) UpsertHistorical(ctx context.Context, records []domain.DailyRecord) (int, error) {
	return d.upsertDaily(ctx, historicalTable, records)
}

func (d *DB) upsertDaily(ctx context.Context, table string, records []domain.DailyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s upsert: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (location_slug, date, temperature_min, temperature_max, precipitation_sum,
			precipitation_probability_max, wind_speed_max, wind_gusts_max, weather_code, sunrise, sunset, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_slug, date) DO UPDATE SET
			temperature_min = excluded.temperature_min,
			temperature_max = excluded.temperature_max,
			precipitation_sum = excluded.precipitation_sum,
			precipitation_probability_max = excluded.precipitation_probability_max,
			wind_speed_max = excluded.wind_speed_max,
			wind_gusts_max = excluded.wind_gusts_max,
			weather_code = excluded.weather_code,
			sunrise = excluded.sunrise,
			sunset = excluded.sunset,
			updated_at = excluded.updated_at`, table))
	if err != nil {
		return 0, fmt.Errorf("prepare %s upsert: %w", table, err)
	}
	defer stmt.Close()

	stamp := nowText()
	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.LocationSlug, rec.Date.Format(domain.DateLayout), rec.TemperatureMin, rec.TemperatureMax,
			rec.PrecipitationSum, optFloat(rec.PrecipitationProbabilityMax), optFloat(rec.WindSpeedMax),
			optFloat(rec.WindGustsMax), rec.WeatherCode, optTime(rec.Sunrise), optTime(rec.Sunset), stamp)
		if err != nil {
			return 0, fmt.Errorf("upsert %s row %s %s: %w", table, rec.LocationSlug, rec.Date.Format(domain.DateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s upsert: %w", table, err)
	}
	return len(records), nil
}

// Locations returns every stored location ordered by slug.
func (d *DB) Locations(ctx context.Context) ([]domain.Location, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name, country, country_code, admin1, latitude, longitude, timezone, elevation
		FROM locations ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var loc domain.Location
		var elevation sql.NullFloat64
		if err := rows.Scan(&loc.Name, &loc.Country, &loc.CountryCode, &loc.Admin1,
			&loc.Latitude, &loc.Longitude, &loc.Timezone, &elevation); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		loc.Elevation = floatPtr(elevation)
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Location returns the stored location with the given slug, or nil when it is
// unknown.
func (d *DB) Location(ctx context.Context, slug string) (*domain.Location, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT name, country, country_code, admin1, latitude, longitude, timezone, elevation
		FROM locations WHERE slug = ?`, slug)

	var loc domain.Location
	var elevation sql.NullFloat64
	err := row.Scan(&loc.Name, &loc.Country, &loc.CountryCode, &loc.Admin1,
		&loc.Latitude, &loc.Longitude, &loc.Timezone, &elevation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query location %s: %w", slug, err)
	}
	loc.Elevation = floatPtr(elevation)
	return &loc, nil
}

// Current returns the location's latest conditions snapshot, or nil when none
// has been stored yet.
func (d *DB) Current(ctx context.Context, slug string) (*domain.CurrentConditions, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT observed_at, temperature, apparent_temperature, humidity, precipitation, rain,
			showers, snowfall, weather_code, cloud_cover, wind_speed, wind_gusts, wind_direction, is_day
		FROM current_conditions WHERE location_slug = ?`, slug)

	c := domain.CurrentConditions{LocationSlug: slug}
	var observedAt string
	var apparent, humidity, precip, rain, showers, snowfall, cloud, speed, gusts, direction sql.NullFloat64
	err := row.Scan(&observedAt, &c.Temperature, &apparent, &humidity, &precip, &rain,
		&showers, &snowfall, &c.WeatherCode, &cloud, &speed, &gusts, &direction, &c.IsDay)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query current conditions for %s: %w", slug, err)
	}

	c.ObservedAt, err = time.Parse(domain.TimeLayout, observedAt)
	if err != nil {
		return nil, fmt.Errorf("parse observed_at for %s: %w", slug, err)
	}
	c.ApparentTemperature = floatPtr(apparent)
	c.Humidity = floatPtr(humidity)
	c.Precipitation = floatPtr(precip)
	c.Rain = floatPtr(rain)
	c.Showers = floatPtr(showers)
	c.Snowfall = floatPtr(snowfall)
	c.CloudCover = floatPtr(cloud)
	c.WindSpeed = floatPtr(speed)
	c.WindGusts = floatPtr(gusts)
	c.WindDirection = floatPtr(direction)
	return &c, nil
}

// HourlyRange returns the location's hourly rows with from <= timestamp <= to,
// ordered by timestamp.
func (d *DB) HourlyRange(ctx context.Context, slug string, from, to time.Time) ([]domain.HourlyRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT timestamp, temperature, apparent_temperature, precipitation, precipitation_probability,
			wind_speed, wind_gusts, weather_code, is_day
		FROM hourly_records
		WHERE location_slug = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`,
		slug, from.Format(domain.TimeLayout), to.Format(domain.TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("query hourly records for %s: %w", slug, err)
	}
	defer rows.Close()

	var out []domain.HourlyRecord
	for rows.Next() {
		rec := domain.HourlyRecord{LocationSlug: slug}
		var ts string
		var apparent, prob, gusts sql.NullFloat64
		if err := rows.Scan(&ts, &rec.Temperature, &apparent, &rec.Precipitation, &prob,
			&rec.WindSpeed, &gusts, &rec.WeatherCode, &rec.IsDay); err != nil {
			return nil, fmt.Errorf("scan hourly record: %w", err)
		}
		if rec.Timestamp, err = time.Parse(domain.TimeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse hourly timestamp %q: %w", ts, err)
		}
		rec.ApparentTemperature = floatPtr(apparent)
		rec.PrecipitationProbability = floatPtr(prob)
		rec.WindGusts = floatPtr(gusts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DailyRange returns forecast daily rows with from <= date <= to.
func (d *DB) DailyRange(ctx context.Context, slug string, from, to time.Time) ([]domain.DailyRecord, error) {
	return d.queryDaily(ctx, dailyTable, slug, from, to)
}

// HistoricalRange returns archive daily rows with from <= date <= to.
func (d *DB) HistoricalRange(ctx context.Context, slug string, from, to time.Time) ([]domain.DailyRecord, error) {
	return d.queryDaily(ctx, historicalTable, slug, from, to)
}

func (d *DB) queryDaily(ctx context.Context, table, slug string, from, to time.Time) ([]domain.DailyRecord, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT date, temperature_min, temperature_max, precipitation_sum, precipitation_probability_max,
			wind_speed_max, wind_gusts_max, weather_code, sunrise, sunset
		FROM %s
		WHERE location_slug = ? AND date >= ? AND date <= ?
		ORDER BY date`, table),
		slug, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", table, slug, err)
	}
	defer rows.Close()

	var out []domain.DailyRecord
	for rows.Next() {
		rec := domain.DailyRecord{LocationSlug: slug}
		var date string
		var prob, speed, gusts sql.NullFloat64
		var sunrise, sunset sql.NullString
		if err := rows.Scan(&date, &rec.TemperatureMin, &rec.TemperatureMax, &rec.PrecipitationSum,
			&prob, &speed, &gusts, &rec.WeatherCode, &sunrise, &sunset); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		if rec.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse %s date %q: %w", table, date, err)
		}
		rec.PrecipitationProbabilityMax = floatPtr(prob)
		rec.WindSpeedMax = floatPtr(speed)
		rec.WindGustsMax = floatPtr(gusts)
		if rec.Sunrise, err = timePtr(sunrise); err != nil {
			return nil, fmt.Errorf("parse %s sunrise %q: %w", table, sunrise.String, err)
		}
		if rec.Sunset, err = timePtr(sunset); err != nil {
			return nil, fmt.Errorf("parse %s sunset %q: %w", table, sunset.String, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary returns per-location row counts for the status endpoint.
func (d *DB) Summary(ctx context.Context) ([]LocationSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT l.slug, l.name, l.country,
			(SELECT COUNT(*) FROM hourly_records h WHERE h.location_slug = l.slug),
			(SELECT COUNT(*) FROM daily_records dr WHERE dr.location_slug = l.slug),
			(SELECT COUNT(*) FROM historical_daily_records hr WHERE hr.location_slug = l.slug),
			l.updated_at
		FROM locations l ORDER BY l.slug`)
	if err != nil {
		return nil, fmt.Errorf("query store summary: %w", err)
	}
	defer rows.Close()

	var out []LocationSummary
	for rows.Next() {
		var s LocationSummary
		var updated string
		if err := rows.Scan(&s.Slug, &s.Name, &s.Country, &s.HourlyRows, &s.DailyRows, &s.HistoricalRows, &updated); err != nil {
			return nil, fmt.Errorf("scan store summary: %w", err)
		}
		if s.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
			return nil, fmt.Errorf("parse summary updated_at %q: %w", updated, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nowText() string {
	return domain.Now().UTC().Format(time.RFC3339)
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Format(domain.TimeLayout)
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func timePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(domain.TimeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
