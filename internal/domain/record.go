package domain

import "time"

// HourlyRecord is one normalized hour of forecast data for a location.
// Timestamp is civil time in the location's own timezone (see package doc).
// Pointer fields are variables the provider may omit or that cleaning
// dropped; the value fields are required for the row to exist at all.
type HourlyRecord struct {
	LocationSlug  string    `json:"location"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"`   // °C
	Precipitation float64   `json:"precipitation"` // mm
	WindSpeed     float64   `json:"wind_speed"`    // km/h
	WeatherCode   int       `json:"weather_code"`
	IsDay         bool      `json:"is_day"`

	ApparentTemperature      *float64 `json:"apparent_temperature,omitempty"`      // °C
	PrecipitationProbability *float64 `json:"precipitation_probability,omitempty"` // %
	WindGusts                *float64 `json:"wind_gusts,omitempty"`                // km/h
}

// DailyRecord is one normalized day for a location. Forecast dailies are
// aggregated from the cleaned hourly rows; archive dailies come straight from
// the provider's daily block. Date is midnight civil time.
type DailyRecord struct {
	LocationSlug     string    `json:"location"`
	Date             time.Time `json:"date"`
	TemperatureMin   float64   `json:"temperature_min"`   // °C
	TemperatureMax   float64   `json:"temperature_max"`   // °C
	PrecipitationSum float64   `json:"precipitation_sum"` // mm
	WeatherCode      int       `json:"weather_code"`      // dominant code for the day

	PrecipitationProbabilityMax *float64   `json:"precipitation_probability_max,omitempty"` // %
	WindSpeedMax                *float64   `json:"wind_speed_max,omitempty"`                // km/h
	WindGustsMax                *float64   `json:"wind_gusts_max,omitempty"`                // km/h
	Sunrise                     *time.Time `json:"sunrise,omitempty"`
	Sunset                      *time.Time `json:"sunset,omitempty"`
}

// CurrentConditions is the latest observed snapshot for a location, one row
// per location (upserted on every ingest).
type CurrentConditions struct {
	LocationSlug string    `json:"location"`
	ObservedAt   time.Time `json:"observed_at"`
	Temperature  float64   `json:"temperature"` // °C
	WeatherCode  int       `json:"weather_code"`
	IsDay        bool      `json:"is_day"`

	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"` // °C
	Humidity            *float64 `json:"humidity,omitempty"`             // %
	Precipitation       *float64 `json:"precipitation,omitempty"`        // mm
	Rain                *float64 `json:"rain,omitempty"`                 // mm
	Showers             *float64 `json:"showers,omitempty"`              // mm
	Snowfall            *float64 `json:"snowfall,omitempty"`             // cm
	WindSpeed           *float64 `json:"wind_speed,omitempty"`           // km/h
	WindGusts           *float64 `json:"wind_gusts,omitempty"`           // km/h
	WindDirection       *float64 `json:"wind_direction,omitempty"`       // degrees
	CloudCover          *float64 `json:"cloud_cover,omitempty"`          // %
}

// ExportBatch groups everything one ingest wrote, for downstream export.
type ExportBatch struct {
	LocationSlug string    `json:"location"`
	Endpoint     string    `json:"endpoint"`
	IngestedAt   time.Time `json:"ingested_at"`

	Current    *CurrentConditions `json:"current,omitempty"`
	Hourly     []HourlyRecord     `json:"hourly,omitempty"`
	Daily      []DailyRecord      `json:"daily,omitempty"`
	Historical []DailyRecord      `json:"historical,omitempty"`
}
