package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Civil-time layouts used by the provider. Hourly timestamps and sun times
// carry minutes; daily entries are bare dates.
const (
	TimeLayout = "2006-01-02T15:04"
	DateLayout = "2006-01-02"
)

// ForecastData is the normalized content of one forecast payload, after
// cleaning. Sun carries the provider's per-day sunrise/sunset, which the
// daily aggregation merges in (they cannot be derived from hourly rows).
type ForecastData struct {
	Current *CurrentConditions
	Hourly  []HourlyRecord
	Sun     []SunTimes
}

// SunTimes is one day's sunrise and sunset in local civil time. Either side
// may be missing (polar day/night or a provider gap).
type SunTimes struct {
	Date    time.Time
	Sunrise *time.Time
	Sunset  *time.Time
}

// Response shapes. Open-Meteo returns parallel arrays: "time" plus one
// same-length array per requested variable, with JSON null for gaps.
type forecastBody struct {
	Timezone string        `json:"timezone"`
	Current  *currentBlock `json:"current"`
	Hourly   *hourlyBlock  `json:"hourly"`
	Daily    *dailyBlock   `json:"daily"`
}

type currentBlock struct {
	Time                string   `json:"time"`
	Temperature         *float64 `json:"temperature_2m"`
	RelativeHumidity    *float64 `json:"relative_humidity_2m"`
	ApparentTemperature *float64 `json:"apparent_temperature"`
	IsDay               *int     `json:"is_day"`
	Precipitation       *float64 `json:"precipitation"`
	Rain                *float64 `json:"rain"`
	Showers             *float64 `json:"showers"`
	Snowfall            *float64 `json:"snowfall"`
	WeatherCode         *int     `json:"weather_code"`
	CloudCover          *float64 `json:"cloud_cover"`
	WindSpeed           *float64 `json:"wind_speed_10m"`
	WindDirection       *float64 `json:"wind_direction_10m"`
	WindGusts           *float64 `json:"wind_gusts_10m"`
}

type hourlyBlock struct {
	Time                     []string   `json:"time"`
	Temperature              []*float64 `json:"temperature_2m"`
	ApparentTemperature      []*float64 `json:"apparent_temperature"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	Precipitation            []*float64 `json:"precipitation"`
	IsDay                    []*int     `json:"is_day"`
	WeatherCode              []*int     `json:"weather_code"`
	WindSpeed                []*float64 `json:"wind_speed_10m"`
	WindGusts                []*float64 `json:"wind_gusts_10m"`
}

type dailyBlock struct {
	Time             []string   `json:"time"`
	WeatherCode      []*int     `json:"weather_code"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
	PrecipProbMax    []*float64 `json:"precipitation_probability_max"`
	WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
	WindGustsMax     []*float64 `json:"wind_gusts_10m_max"`
	Sunrise          []string   `json:"sunrise"`
	Sunset           []string   `json:"sunset"`
}

// ParseForecastPayload decodes a forecast payload into cleaned records.
// Individual bad rows are dropped and counted in the report; only an
// undecodable body or a payload from the wrong endpoint is an error.
func ParseForecastPayload(p RawPayload) (ForecastData, CleanReport, error) {
	var report CleanReport
	if p.Endpoint != EndpointForecast {
		return ForecastData{}, report, fmt.Errorf("payload endpoint is %q, want %q", p.Endpoint, EndpointForecast)
	}

	var body forecastBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return ForecastData{}, report, fmt.Errorf("decode forecast payload for %s: %w", p.LocationSlug, err)
	}

	var data ForecastData
	if body.Daily != nil {
		data.Sun = sunTimes(body.Daily)
	}
	data.Current = CleanCurrentConditions(parseCurrent(p.LocationSlug, body.Current, &report), &report)
	data.Hourly = CleanHourlyRecords(parseHourly(p.LocationSlug, body.Hourly, data.Sun, &report), &report)
	return data, report, nil
}

// ParseArchivePayload decodes an archive payload into cleaned daily records.
// Rows with any required value missing are dropped and counted: the archive
// lags a few days behind real time and pads the tail with nulls.
func ParseArchivePayload(p RawPayload) ([]DailyRecord, CleanReport, error) {
	var report CleanReport
	if p.Endpoint != EndpointArchive {
		return nil, report, fmt.Errorf("payload endpoint is %q, want %q", p.Endpoint, EndpointArchive)
	}

	var body forecastBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return nil, report, fmt.Errorf("decode archive payload for %s: %w", p.LocationSlug, err)
	}

	rows := parseDaily(p.LocationSlug, body.Daily, &report)
	return CleanDailyRecords(rows, &report), report, nil
}

func parseCurrent(slug string, block *currentBlock, report *CleanReport) *CurrentConditions {
	if block == nil {
		return nil
	}
	observedAt, err := time.Parse(TimeLayout, block.Time)
	if err != nil {
		report.dropRow(DropTimestampMalformed)
		return nil
	}
	if block.Temperature == nil {
		report.dropRow(missing("temperature"))
		return nil
	}
	if block.WeatherCode == nil {
		report.dropRow(missing("weather_code"))
		return nil
	}

	isDay := true
	if block.IsDay != nil {
		isDay = *block.IsDay != 0
	}
	return &CurrentConditions{
		LocationSlug:        slug,
		ObservedAt:          observedAt,
		Temperature:         *block.Temperature,
		WeatherCode:         *block.WeatherCode,
		IsDay:               isDay,
		ApparentTemperature: block.ApparentTemperature,
		Humidity:            block.RelativeHumidity,
		Precipitation:       block.Precipitation,
		Rain:                block.Rain,
		Showers:             block.Showers,
		Snowfall:            block.Snowfall,
		WindSpeed:           block.WindSpeed,
		WindGusts:           block.WindGusts,
		WindDirection:       block.WindDirection,
		CloudCover:          block.CloudCover,
	}
}

func parseHourly(slug string, block *hourlyBlock, sun []SunTimes, report *CleanReport) []HourlyRecord {
	if block == nil {
		return nil
	}

	sunByDate := make(map[time.Time]SunTimes, len(sun))
	for _, s := range sun {
		sunByDate[s.Date] = s
	}

	rows := make([]HourlyRecord, 0, len(block.Time))
	for i, raw := range block.Time {
		ts, err := time.Parse(TimeLayout, raw)
		if err != nil {
			report.dropRow(DropTimestampMalformed)
			continue
		}
		temp := floatAt(block.Temperature, i)
		precip := floatAt(block.Precipitation, i)
		speed := floatAt(block.WindSpeed, i)
		code := intAt(block.WeatherCode, i)
		switch {
		case temp == nil:
			report.dropRow(missing("temperature"))
			continue
		case precip == nil:
			report.dropRow(missing("precipitation"))
			continue
		case speed == nil:
			report.dropRow(missing("wind_speed"))
			continue
		case code == nil:
			report.dropRow(missing("weather_code"))
			continue
		}

		rows = append(rows, HourlyRecord{
			LocationSlug:             slug,
			Timestamp:                ts,
			Temperature:              *temp,
			Precipitation:            *precip,
			WindSpeed:                *speed,
			WeatherCode:              *code,
			IsDay:                    hourIsDay(ts, intAt(block.IsDay, i), sunByDate),
			ApparentTemperature:      floatAt(block.ApparentTemperature, i),
			PrecipitationProbability: floatAt(block.PrecipitationProbability, i),
			WindGusts:                floatAt(block.WindGusts, i),
		})
	}
	return rows
}

func parseDaily(slug string, block *dailyBlock, report *CleanReport) []DailyRecord {
	if block == nil {
		return nil
	}

	rows := make([]DailyRecord, 0, len(block.Time))
	for i, raw := range block.Time {
		date, err := time.Parse(DateLayout, raw)
		if err != nil {
			report.dropRow(DropTimestampMalformed)
			continue
		}
		tmax := floatAt(block.TemperatureMax, i)
		tmin := floatAt(block.TemperatureMin, i)
		psum := floatAt(block.PrecipitationSum, i)
		code := intAt(block.WeatherCode, i)
		switch {
		case tmax == nil:
			report.dropRow(missing("temperature_max"))
			continue
		case tmin == nil:
			report.dropRow(missing("temperature_min"))
			continue
		case psum == nil:
			report.dropRow(missing("precipitation_sum"))
			continue
		case code == nil:
			report.dropRow(missing("weather_code"))
			continue
		}

		rows = append(rows, DailyRecord{
			LocationSlug:                slug,
			Date:                        date,
			TemperatureMin:              *tmin,
			TemperatureMax:              *tmax,
			PrecipitationSum:            *psum,
			WeatherCode:                 *code,
			PrecipitationProbabilityMax: floatAt(block.PrecipProbMax, i),
			WindSpeedMax:                floatAt(block.WindSpeedMax, i),
			WindGustsMax:                floatAt(block.WindGustsMax, i),
			Sunrise:                     timeAt(block.Sunrise, i),
			Sunset:                      timeAt(block.Sunset, i),
		})
	}
	return rows
}

// sunTimes extracts the per-day sunrise/sunset pairs from a daily block.
func sunTimes(block *dailyBlock) []SunTimes {
	out := make([]SunTimes, 0, len(block.Time))
	for i, raw := range block.Time {
		date, err := time.Parse(DateLayout, raw)
		if err != nil {
			continue
		}
		out = append(out, SunTimes{
			Date:    date,
			Sunrise: timeAt(block.Sunrise, i),
			Sunset:  timeAt(block.Sunset, i),
		})
	}
	return out
}

// hourIsDay resolves the day/night flag for an hourly row. The provider flag
// wins when present; otherwise the flag is derived from the day's
// sunrise/sunset window, and defaults to day when that window is unknown.
func hourIsDay(ts time.Time, flag *int, sunByDate map[time.Time]SunTimes) bool {
	if flag != nil {
		return *flag != 0
	}
	s, ok := sunByDate[ts.Truncate(24*time.Hour)]
	if !ok || s.Sunrise == nil || s.Sunset == nil {
		return true
	}
	return !ts.Before(*s.Sunrise) && ts.Before(*s.Sunset)
}

func floatAt(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func intAt(values []*int, i int) *int {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func timeAt(values []string, i int) *time.Time {
	if i >= len(values) {
		return nil
	}
	t, err := time.Parse(TimeLayout, values[i])
	if err != nil {
		return nil
	}
	return &t
}
