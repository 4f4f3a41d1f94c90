// Package openmeteo adapts the Open-Meteo forecast, geocoding and archive
// APIs to the domain types.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
	"github.com/vigimeteo/meteo-etl/internal/upstream"
)

// Provider endpoints. The fields on Client exist so tests can point them at
// a local server.
const (
	forecastBaseURL = "https://api.open-meteo.com/v1/forecast"
	geocodeBaseURL  = "https://geocoding-api.open-meteo.com/v1/search"
	archiveBaseURL  = "https://archive-api.open-meteo.com/v1/archive"
)

// Request horizon limits documented by the provider.
const (
	maxForecastDays     = 16
	maxPastDays         = 92
	defaultGeocodeCount = 10
	maxGeocodeCount     = 100
)

// Variable lists requested from the forecast endpoint. Hourly rows carry
// is_day so day/night icons stay correct; the daily block carries
// sunrise/sunset as the fallback when the provider omits the hourly flag.
var (
	currentFields = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"apparent_temperature",
		"is_day",
		"precipitation",
		"rain",
		"showers",
		"snowfall",
		"weather_code",
		"cloud_cover",
		"wind_speed_10m",
		"wind_direction_10m",
		"wind_gusts_10m",
	}
	hourlyFields = []string{
		"temperature_2m",
		"apparent_temperature",
		"precipitation_probability",
		"precipitation",
		"is_day",
		"weather_code",
		"wind_speed_10m",
		"wind_gusts_10m",
	}
	dailyFields = []string{
		"weather_code",
		"temperature_2m_max",
		"temperature_2m_min",
		"precipitation_sum",
		"precipitation_probability_max",
		"wind_speed_10m_max",
		"wind_gusts_10m_max",
		"sunrise",
		"sunset",
	}
	archiveDailyFields = []string{
		"temperature_2m_max",
		"temperature_2m_min",
		"precipitation_sum",
		"weather_code",
	}
)

// Client calls the Open-Meteo APIs through the shared retrying HTTP client.
// Validation failures are caught before any network traffic.
type Client struct {
	http    *upstream.Client
	logger  *slog.Logger
	metrics *observability.Metrics

	forecastURL string
	geocodeURL  string
	archiveURL  string
}

// NewClient creates an Open-Meteo client.
func NewClient(httpClient *upstream.Client, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		http:        httpClient,
		logger:      logger,
		metrics:     metrics,
		forecastURL: forecastBaseURL,
		geocodeURL:  geocodeBaseURL,
		archiveURL:  archiveBaseURL,
	}
}

// NewClientForTesting creates a client with every endpoint pointed at baseURL,
// so tests can serve all three APIs from one stub server.
func NewClientForTesting(httpClient *upstream.Client, logger *slog.Logger, metrics *observability.Metrics, baseURL string) *Client {
	return &Client{
		http:        httpClient,
		logger:      logger,
		metrics:     metrics,
		forecastURL: baseURL,
		geocodeURL:  baseURL,
		archiveURL:  baseURL,
	}
}

// Geocode searches for places by name. Queries shorter than two runes match
// nothing and cost no network call. When q.Country is set, results are
// restricted to that country: the restriction is also passed upstream, but
// the client-side filter is what guarantees it.
func (c *Client) Geocode(ctx context.Context, q domain.GeocodeQuery) ([]domain.Location, error) {
	name := strings.TrimSpace(q.Name)
	if len([]rune(name)) < 2 {
		return nil, nil
	}

	count := q.Count
	if count <= 0 {
		count = defaultGeocodeCount
	}
	if count > maxGeocodeCount {
		return nil, domain.InvalidRequestError{
			Op:     "geocode",
			Reason: fmt.Sprintf("count must be at most %d, got %d", maxGeocodeCount, count),
		}
	}

	params := map[string]string{
		"name":   name,
		"count":  strconv.Itoa(count),
		"format": "json",
	}
	if q.Language != "" {
		params["language"] = q.Language
	}
	if q.Country != "" {
		params["countryCode"] = strings.ToUpper(q.Country)
	}

	body, err := c.http.GetJSON(ctx, "geocode", c.geocodeURL, params)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, domain.GeocodingError{Query: name, Reason: "malformed response body", Err: err}
	}

	locations := make([]domain.Location, 0, len(resp.Results))
	skipped := 0
	for _, r := range resp.Results {
		if r.Latitude == nil || r.Longitude == nil {
			skipped++
			continue
		}
		if q.Country != "" && !strings.EqualFold(r.CountryCode, q.Country) {
			continue
		}
		country := r.Country
		if country == "" {
			country = r.CountryCode
		}
		timezone := r.Timezone
		if timezone == "" {
			timezone = "auto"
		}
		locations = append(locations, domain.Location{
			Name:        r.Name,
			Country:     country,
			CountryCode: strings.ToUpper(r.CountryCode),
			Admin1:      r.Admin1,
			Latitude:    *r.Latitude,
			Longitude:   *r.Longitude,
			Timezone:    timezone,
			Elevation:   r.Elevation,
		})
	}
	if skipped > 0 {
		c.logger.Debug("skipped malformed geocode results", "query", name, "skipped", skipped)
	}

	if len(locations) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return locations, nil
}

// Forecast fetches current conditions plus the hourly and daily blocks for a
// location and returns the verbatim payload.
func (c *Client) Forecast(ctx context.Context, loc domain.Location, opts domain.ForecastOptions) (domain.RawPayload, error) {
	if opts.ForecastDays < 1 || opts.ForecastDays > maxForecastDays {
		return domain.RawPayload{}, domain.InvalidRequestError{
			Op:     "forecast",
			Reason: fmt.Sprintf("forecast days must be between 1 and %d, got %d", maxForecastDays, opts.ForecastDays),
		}
	}
	if opts.PastDays < 0 || opts.PastDays > maxPastDays {
		return domain.RawPayload{}, domain.InvalidRequestError{
			Op:     "forecast",
			Reason: fmt.Sprintf("past days must be between 0 and %d, got %d", maxPastDays, opts.PastDays),
		}
	}

	params := locationParams(loc)
	params["forecast_days"] = strconv.Itoa(opts.ForecastDays)
	params["past_days"] = strconv.Itoa(opts.PastDays)
	params["current"] = strings.Join(currentFields, ",")
	params["hourly"] = strings.Join(hourlyFields, ",")
	params["daily"] = strings.Join(dailyFields, ",")

	body, err := c.http.GetJSON(ctx, "forecast", c.forecastURL, params)
	if err != nil {
		return domain.RawPayload{}, err
	}
	return domain.NewRawPayload(domain.EndpointForecast, loc, body), nil
}

// Archive fetches historical daily observations for a closed date range.
// The range must be ordered and must not reach past today: the archive only
// holds observed days.
func (c *Client) Archive(ctx context.Context, loc domain.Location, r domain.DateRange) (domain.RawPayload, error) {
	if r.Start.IsZero() || r.End.IsZero() {
		return domain.RawPayload{}, domain.InvalidRequestError{Op: "archive", Reason: "start and end dates are required"}
	}
	if r.End.Before(r.Start) {
		return domain.RawPayload{}, domain.InvalidRequestError{
			Op:     "archive",
			Reason: fmt.Sprintf("end date %s precedes start date %s", r.End.Format(domain.DateLayout), r.Start.Format(domain.DateLayout)),
		}
	}
	if today := domain.Today(); r.End.After(today) {
		return domain.RawPayload{}, domain.InvalidRequestError{
			Op:     "archive",
			Reason: fmt.Sprintf("end date %s is in the future", r.End.Format(domain.DateLayout)),
		}
	}

	params := locationParams(loc)
	params["start_date"] = r.Start.Format(domain.DateLayout)
	params["end_date"] = r.End.Format(domain.DateLayout)
	params["daily"] = strings.Join(archiveDailyFields, ",")

	body, err := c.http.GetJSON(ctx, "archive", c.archiveURL, params)
	if err != nil {
		return domain.RawPayload{}, err
	}
	return domain.NewRawPayload(domain.EndpointArchive, loc, body), nil
}

// locationParams returns the parameters shared by forecast and archive
// requests: coordinates, timezone and explicit units.
func locationParams(loc domain.Location) map[string]string {
	timezone := loc.Timezone
	if timezone == "" {
		timezone = "auto"
	}
	return map[string]string{
		"latitude":           strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		"longitude":          strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
		"timezone":           timezone,
		"wind_speed_unit":    "kmh",
		"temperature_unit":   "celsius",
		"precipitation_unit": "mm",
	}
}

// Geocoding API response types.

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Name        string   `json:"name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Elevation   *float64 `json:"elevation"`
	Timezone    string   `json:"timezone"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Admin1      string   `json:"admin1"`
}
