package domain

import (
	"sort"
	"time"
)

// BuildDailyRecords aggregates cleaned hourly rows into one record per civil
// date: temperature min/max, precipitation sum, the dominant weather code and
// the maxima of the optional metrics carried by any hour. Output is sorted by
// date. Re-running over the same rows yields identical records.
func BuildDailyRecords(hourly []HourlyRecord) []DailyRecord {
	if len(hourly) == 0 {
		return nil
	}

	byDate := make(map[time.Time][]HourlyRecord)
	for _, h := range hourly {
		date := h.Timestamp.Truncate(24 * time.Hour)
		byDate[date] = append(byDate[date], h)
	}
	dates := make([]time.Time, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]DailyRecord, 0, len(dates))
	for _, date := range dates {
		rows := byDate[date]
		rec := DailyRecord{
			LocationSlug:   rows[0].LocationSlug,
			Date:           date,
			TemperatureMin: rows[0].Temperature,
			TemperatureMax: rows[0].Temperature,
		}
		speedMax := rows[0].WindSpeed
		codeCounts := make(map[int]int, len(rows))
		for _, h := range rows {
			if h.Temperature < rec.TemperatureMin {
				rec.TemperatureMin = h.Temperature
			}
			if h.Temperature > rec.TemperatureMax {
				rec.TemperatureMax = h.Temperature
			}
			if h.WindSpeed > speedMax {
				speedMax = h.WindSpeed
			}
			rec.PrecipitationSum += h.Precipitation
			rec.PrecipitationProbabilityMax = maxOptional(rec.PrecipitationProbabilityMax, h.PrecipitationProbability)
			rec.WindGustsMax = maxOptional(rec.WindGustsMax, h.WindGusts)
			codeCounts[h.WeatherCode]++
		}
		rec.WindSpeedMax = &speedMax
		rec.WeatherCode = dominantCode(codeCounts)
		out = append(out, rec)
	}
	return out
}

// MergeSunTimes copies the provider's sunrise/sunset onto records with a
// matching date. Hourly data cannot supply these, so they ride along from the
// daily block.
func MergeSunTimes(daily []DailyRecord, sun []SunTimes) []DailyRecord {
	if len(sun) == 0 {
		return daily
	}
	byDate := make(map[time.Time]SunTimes, len(sun))
	for _, s := range sun {
		byDate[s.Date] = s
	}
	for i := range daily {
		if s, ok := byDate[daily[i].Date]; ok {
			daily[i].Sunrise = s.Sunrise
			daily[i].Sunset = s.Sunset
		}
	}
	return daily
}

// dominantCode picks the most frequent code; ties go to the higher code,
// which in the WMO table is the heavier phenomenon.
func dominantCode(counts map[int]int) int {
	best, bestCount := 0, -1
	for code, n := range counts {
		if n > bestCount || (n == bestCount && code > best) {
			best, bestCount = code, n
		}
	}
	return best
}

func maxOptional(current, candidate *float64) *float64 {
	if candidate == nil {
		return current
	}
	if current == nil || *candidate > *current {
		v := *candidate
		return &v
	}
	return current
}
