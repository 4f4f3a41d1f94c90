package domain

// DropReason classifies why cleaning rejected a row or cleared a field.
// Reasons are stable strings: they key log fields and metric labels.
type DropReason string

// Row-level reasons not tied to a single field.
const (
	DropTimestampMalformed DropReason = "timestamp_malformed"
	DropTemperatureRange   DropReason = "temperature_range_inverted"
)

func missing(field string) DropReason    { return DropReason(field + "_missing") }
func outOfRange(field string) DropReason { return DropReason(field + "_out_of_range") }

// CleanReport counts what parsing and cleaning kept and dropped for one
// payload. A fetch never fails because of individual bad rows; this report is
// how those rows stay visible.
type CleanReport struct {
	RowsKept      int
	RowsDropped   int
	FieldsCleared int
	Reasons       map[DropReason]int
}

func (r *CleanReport) keepRow() { r.RowsKept++ }

func (r *CleanReport) dropRow(reason DropReason) {
	r.RowsDropped++
	r.count(reason)
}

func (r *CleanReport) clearField(reason DropReason) {
	r.FieldsCleared++
	r.count(reason)
}

func (r *CleanReport) count(reason DropReason) {
	if r.Reasons == nil {
		r.Reasons = make(map[DropReason]int)
	}
	r.Reasons[reason]++
}

// Merge folds another report into r.
func (r *CleanReport) Merge(o CleanReport) {
	r.RowsKept += o.RowsKept
	r.RowsDropped += o.RowsDropped
	r.FieldsCleared += o.FieldsCleared
	for reason, n := range o.Reasons {
		if r.Reasons == nil {
			r.Reasons = make(map[DropReason]int)
		}
		r.Reasons[reason] += n
	}
}

// HasDrops reports whether anything was rejected.
func (r CleanReport) HasDrops() bool {
	return r.RowsDropped > 0 || r.FieldsCleared > 0
}

type bounds struct{ min, max float64 }

func (b bounds) contains(v float64) bool { return v >= b.min && v <= b.max }

// Plausibility windows. Values outside are treated as encoding or sensor
// artifacts, not weather: the surface temperature records are -89.2°C
// (Vostok, 1983) and 56.7°C (Furnace Creek, 1913), and the strongest
// measured 10 m gust is 408 km/h (Barrow Island, 1996).
var (
	temperatureBounds   = bounds{-90, 60}
	apparentTempBounds  = bounds{-90, 70}
	percentBounds       = bounds{0, 100}
	hourlyPrecipBounds  = bounds{0, 500}
	dailyPrecipBounds   = bounds{0, 2000}
	windSpeedBounds     = bounds{0, 330}
	windGustBounds      = bounds{0, 440}
	windDirectionBounds = bounds{0, 360}
	snowfallBounds      = bounds{0, 300}
)

// CleanHourlyRecords drops rows whose required values fall outside the
// plausibility windows and clears optional values that do. The input slice is
// reused; callers must not touch it afterwards.
func CleanHourlyRecords(rows []HourlyRecord, report *CleanReport) []HourlyRecord {
	kept := rows[:0]
	for _, row := range rows {
		switch {
		case !temperatureBounds.contains(row.Temperature):
			report.dropRow(outOfRange("temperature"))
		case !hourlyPrecipBounds.contains(row.Precipitation):
			report.dropRow(outOfRange("precipitation"))
		case !windSpeedBounds.contains(row.WindSpeed):
			report.dropRow(outOfRange("wind_speed"))
		default:
			row.ApparentTemperature = clearOutside(row.ApparentTemperature, apparentTempBounds, "apparent_temperature", report)
			row.PrecipitationProbability = clearOutside(row.PrecipitationProbability, percentBounds, "precipitation_probability", report)
			row.WindGusts = clearOutside(row.WindGusts, windGustBounds, "wind_gusts", report)
			report.keepRow()
			kept = append(kept, row)
		}
	}
	return kept
}

// CleanDailyRecords applies the daily plausibility windows, including the
// min ≤ max consistency check on the temperature pair.
func CleanDailyRecords(rows []DailyRecord, report *CleanReport) []DailyRecord {
	kept := rows[:0]
	for _, row := range rows {
		switch {
		case !temperatureBounds.contains(row.TemperatureMin):
			report.dropRow(outOfRange("temperature_min"))
		case !temperatureBounds.contains(row.TemperatureMax):
			report.dropRow(outOfRange("temperature_max"))
		case row.TemperatureMin > row.TemperatureMax:
			report.dropRow(DropTemperatureRange)
		case !dailyPrecipBounds.contains(row.PrecipitationSum):
			report.dropRow(outOfRange("precipitation_sum"))
		default:
			row.PrecipitationProbabilityMax = clearOutside(row.PrecipitationProbabilityMax, percentBounds, "precipitation_probability_max", report)
			row.WindSpeedMax = clearOutside(row.WindSpeedMax, windSpeedBounds, "wind_speed_max", report)
			row.WindGustsMax = clearOutside(row.WindGustsMax, windGustBounds, "wind_gusts_max", report)
			report.keepRow()
			kept = append(kept, row)
		}
	}
	return kept
}

// CleanCurrentConditions validates the snapshot. A snapshot with an
// implausible temperature is rejected entirely (nil return); implausible
// optional values are cleared.
func CleanCurrentConditions(c *CurrentConditions, report *CleanReport) *CurrentConditions {
	if c == nil {
		return nil
	}
	if !temperatureBounds.contains(c.Temperature) {
		report.dropRow(outOfRange("temperature"))
		return nil
	}
	c.ApparentTemperature = clearOutside(c.ApparentTemperature, apparentTempBounds, "apparent_temperature", report)
	c.Humidity = clearOutside(c.Humidity, percentBounds, "humidity", report)
	c.Precipitation = clearOutside(c.Precipitation, hourlyPrecipBounds, "precipitation", report)
	c.Rain = clearOutside(c.Rain, hourlyPrecipBounds, "rain", report)
	c.Showers = clearOutside(c.Showers, hourlyPrecipBounds, "showers", report)
	c.Snowfall = clearOutside(c.Snowfall, snowfallBounds, "snowfall", report)
	c.WindSpeed = clearOutside(c.WindSpeed, windSpeedBounds, "wind_speed", report)
	c.WindGusts = clearOutside(c.WindGusts, windGustBounds, "wind_gusts", report)
	c.WindDirection = clearOutside(c.WindDirection, windDirectionBounds, "wind_direction", report)
	c.CloudCover = clearOutside(c.CloudCover, percentBounds, "cloud_cover", report)
	report.keepRow()
	return c
}

func clearOutside(v *float64, b bounds, field string, report *CleanReport) *float64 {
	if v == nil {
		return nil
	}
	if !b.contains(*v) {
		report.clearField(outOfRange(field))
		return nil
	}
	return v
}
