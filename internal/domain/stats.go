package domain

import (
	"math"
	"sort"
	"time"
)

// TemperatureStats are descriptive statistics over a temperature series.
// Std is the sample standard deviation (n-1 denominator), zero when the
// series has a single value.
type TemperatureStats struct {
	Mean  float64
	Min   float64
	Max   float64
	Std   float64
	Count int
}

// ComputeTemperatureStats summarizes a series. The second return is false
// for empty input.
func ComputeTemperatureStats(values []float64) (TemperatureStats, bool) {
	if len(values) == 0 {
		return TemperatureStats{}, false
	}

	stats := TemperatureStats{Min: values[0], Max: values[0], Count: len(values)}
	var sum float64
	for _, v := range values {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = sum / float64(len(values))

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - stats.Mean
			sq += d * d
		}
		stats.Std = math.Sqrt(sq / float64(len(values)-1))
	}
	return stats, true
}

// MonthlyMean is the mean daily temperature of one calendar month, where a
// day's temperature is (max+min)/2.
type MonthlyMean struct {
	Month time.Time // first of the month, civil time
	Mean  float64
	Days  int
}

// MonthlyMeans aggregates daily records into per-month mean temperatures,
// sorted ascending by month.
func MonthlyMeans(days []DailyRecord) []MonthlyMean {
	if len(days) == 0 {
		return nil
	}

	type acc struct {
		sum float64
		n   int
	}
	byMonth := make(map[time.Time]*acc)
	for _, d := range days {
		month := time.Date(d.Date.Year(), d.Date.Month(), 1, 0, 0, 0, 0, d.Date.Location())
		a, ok := byMonth[month]
		if !ok {
			a = &acc{}
			byMonth[month] = a
		}
		a.sum += (d.TemperatureMax + d.TemperatureMin) / 2
		a.n++
	}

	out := make([]MonthlyMean, 0, len(byMonth))
	for month, a := range byMonth {
		out = append(out, MonthlyMean{Month: month, Mean: a.sum / float64(a.n), Days: a.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}
