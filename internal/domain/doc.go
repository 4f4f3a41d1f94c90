// Package domain models Open-Meteo weather data and the advisory levels
// derived from it.
//
// # Data Source
//
// All upstream data comes from the Open-Meteo public APIs
// (https://open-meteo.com): the forecast endpoint (current conditions plus
// hourly and daily blocks), the geocoding endpoint (place search), and the
// archive endpoint (historical daily observations). Responses are JSON with
// parallel arrays: a "time" array and one same-length array per variable.
// Missing values arrive as JSON null, which is why optional metrics are
// pointer fields on the record types.
//
// # Units and Time Conventions
//
// Temperatures are degrees Celsius, wind speeds and gusts km/h, precipitation
// millimetres, probabilities and humidity percent, wind direction degrees.
// The requests pin these units explicitly so records never depend on provider
// defaults.
//
// Timestamps are civil times in the location's own timezone, exactly as the
// provider returns them ("2006-01-02T15:04" for hourly, "2006-01-02" for
// daily). They are parsed without zone conversion and stored as text, so a
// record's timestamp always reads as local wall-clock time at the location.
//
// # Weather Codes
//
// The "weather_code" variable is a WMO interpretation code (0 = clear sky,
// 61 = light rain, 95 = thunderstorm, ...). [TranslateWeatherCode] maps a
// code and a day/night flag to a French display label and an emoji icon.
// Codes missing from the table yield [UnknownWeatherCodeError]; ingestion
// stores codes as-is so an upstream table extension never breaks a fetch.
//
// # Vigilance
//
// The vigilance level is a local estimate computed from forecast values by an
// ordered rule table (see [EvaluateDay]). It is NOT an official
// Météo-France vigilance bulletin and must never be presented as one: the
// thresholds are project-specific and the input is forecast data, not an
// official hazard assessment. Levels are ordered none < yellow < orange <
// red; a day's level is the maximum level whose rule matched.
//
// # Location Slugs
//
// [Location.Slug] derives a deterministic identifier from the place name and
// country ("Paris"/"France" → "paris-france"). Slugs key the processed tables
// and the raw payload files, which makes re-ingestion idempotent: the same
// place always lands on the same rows.
package domain
