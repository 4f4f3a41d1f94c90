package domain

import (
	"fmt"
	"time"
)

// Level is a vigilance level. Levels are ordered: higher values mean more
// dangerous conditions.
type Level int

const (
	LevelNone Level = iota
	LevelYellow
	LevelOrange
	LevelRed
)

// String returns the machine token for the level, used in logs, metrics and
// the export stream.
func (l Level) String() string {
	switch l {
	case LevelYellow:
		return "yellow"
	case LevelOrange:
		return "orange"
	case LevelRed:
		return "red"
	default:
		return "none"
	}
}

// Label returns the French display form ("Vigilance verte", "Vigilance
// jaune", ...). Green is the display color of LevelNone.
func (l Level) Label() string {
	switch l {
	case LevelYellow:
		return "Vigilance jaune"
	case LevelOrange:
		return "Vigilance orange"
	case LevelRed:
		return "Vigilance rouge"
	default:
		return "Vigilance verte"
	}
}

// Metric names a record field a vigilance rule can test. Daily rules use the
// *Max/*Min aggregates; hourly rules use the instantaneous values.
type Metric string

const (
	MetricWindGustsMax    Metric = "wind_gusts_max"
	MetricPrecipProbMax   Metric = "precipitation_probability_max"
	MetricTemperatureMax  Metric = "temperature_max"
	MetricTemperatureMin  Metric = "temperature_min"
	MetricWindGusts       Metric = "wind_gusts"
	MetricPrecipProb      Metric = "precipitation_probability"
	MetricTemperature     Metric = "temperature"
	MetricPrecipIntensity Metric = "precipitation"
)

// Compare is the direction of a rule's threshold test.
type Compare int

const (
	AtLeast Compare = iota // value >= threshold
	AtMost                 // value <= threshold
)

// VigilanceRule raises a level when a metric crosses a threshold. Reason is a
// French format string receiving the offending value.
type VigilanceRule struct {
	Metric    Metric
	Compare   Compare
	Threshold float64
	Level     Level
	Reason    string
}

// ReasonAllClear is the rating reason when no rule matched.
const ReasonAllClear = "Pas de phénomène dangereux détecté"

// VigilanceRating is the outcome of evaluating one record against a rule
// list. It is always recomputed from the processed records, never persisted.
// Metric and Value identify the measurement that raised the level; both are
// zero when the level is LevelNone.
type VigilanceRating struct {
	LocationSlug string
	Date         time.Time
	Level        Level
	Metric       Metric
	Value        float64
	Reason       string
}

// DefaultVigilanceRules returns the daily rule table. The thresholds are
// project-specific rules of thumb, not official warning criteria; the rating
// stays a local estimate whatever the table says.
func DefaultVigilanceRules() []VigilanceRule {
	return []VigilanceRule{
		{MetricWindGustsMax, AtLeast, 90, LevelRed, "Rafales très fortes (%.0f km/h)"},
		{MetricTemperatureMax, AtLeast, 40, LevelRed, "Chaleur extrême (max %.0f°C)"},
		{MetricWindGustsMax, AtLeast, 70, LevelOrange, "Rafales fortes (%.0f km/h)"},
		{MetricPrecipProbMax, AtLeast, 85, LevelOrange, "Risque de pluie très élevé (%.0f%%)"},
		{MetricTemperatureMin, AtMost, -7, LevelOrange, "Froid marqué (min %.0f°C)"},
		{MetricWindGustsMax, AtLeast, 55, LevelYellow, "Rafales modérées (%.0f km/h)"},
		{MetricPrecipProbMax, AtLeast, 60, LevelYellow, "Risque de pluie (%.0f%%)"},
		{MetricTemperatureMax, AtLeast, 32, LevelYellow, "Chaud (max %.0f°C)"},
	}
}

// DefaultHourlyRules returns the hourly rule table: the same ladders applied
// to instantaneous values.
func DefaultHourlyRules() []VigilanceRule {
	return []VigilanceRule{
		{MetricWindGusts, AtLeast, 90, LevelRed, "Rafales très fortes (%.0f km/h)"},
		{MetricTemperature, AtLeast, 40, LevelRed, "Chaleur extrême (%.0f°C)"},
		{MetricWindGusts, AtLeast, 70, LevelOrange, "Rafales fortes (%.0f km/h)"},
		{MetricPrecipProb, AtLeast, 85, LevelOrange, "Risque de pluie très élevé (%.0f%%)"},
		{MetricTemperature, AtMost, -7, LevelOrange, "Froid marqué (%.0f°C)"},
		{MetricWindGusts, AtLeast, 55, LevelYellow, "Rafales modérées (%.0f km/h)"},
		{MetricPrecipProb, AtLeast, 60, LevelYellow, "Risque de pluie (%.0f%%)"},
		{MetricTemperature, AtLeast, 32, LevelYellow, "Chaud (%.0f°C)"},
	}
}

// EvaluateDay rates one daily record against an ordered rule list. Every rule
// is evaluated and the maximum matched level wins, so the outcome does not
// depend on rule order; among rules tying at the winning level the first in
// the list supplies the reason. Rules whose metric is absent from the record
// are skipped.
func EvaluateDay(day DailyRecord, rules []VigilanceRule) VigilanceRating {
	rating := VigilanceRating{
		LocationSlug: day.LocationSlug,
		Date:         day.Date,
		Level:        LevelNone,
		Reason:       ReasonAllClear,
	}
	for _, rule := range rules {
		value, ok := dailyMetric(day, rule.Metric)
		if !ok || !rule.matches(value) {
			continue
		}
		if rule.Level > rating.Level {
			rating.Level = rule.Level
			rating.Metric = rule.Metric
			rating.Value = value
			rating.Reason = fmt.Sprintf(rule.Reason, value)
		}
	}
	return rating
}

// EvaluateDays rates each record in order. Input order is preserved.
func EvaluateDays(days []DailyRecord, rules []VigilanceRule) []VigilanceRating {
	ratings := make([]VigilanceRating, len(days))
	for i, day := range days {
		ratings[i] = EvaluateDay(day, rules)
	}
	return ratings
}

// EvaluateHour rates one hourly record against an hourly rule list, with the
// same maximum-level semantics as EvaluateDay.
func EvaluateHour(hour HourlyRecord, rules []VigilanceRule) VigilanceRating {
	rating := VigilanceRating{
		LocationSlug: hour.LocationSlug,
		Date:         hour.Timestamp,
		Level:        LevelNone,
		Reason:       ReasonAllClear,
	}
	for _, rule := range rules {
		value, ok := hourlyMetric(hour, rule.Metric)
		if !ok || !rule.matches(value) {
			continue
		}
		if rule.Level > rating.Level {
			rating.Level = rule.Level
			rating.Metric = rule.Metric
			rating.Value = value
			rating.Reason = fmt.Sprintf(rule.Reason, value)
		}
	}
	return rating
}

// WorstRating returns the highest-level rating of the slice, preferring the
// earliest date among equals. The zero rating is returned for empty input.
func WorstRating(ratings []VigilanceRating) VigilanceRating {
	var worst VigilanceRating
	for i, r := range ratings {
		if i == 0 || r.Level > worst.Level {
			worst = r
		}
	}
	if worst.Reason == "" {
		worst.Reason = ReasonAllClear
	}
	return worst
}

func (r VigilanceRule) matches(value float64) bool {
	if r.Compare == AtMost {
		return value <= r.Threshold
	}
	return value >= r.Threshold
}

func dailyMetric(day DailyRecord, m Metric) (float64, bool) {
	switch m {
	case MetricWindGustsMax:
		return deref(day.WindGustsMax)
	case MetricPrecipProbMax:
		return deref(day.PrecipitationProbabilityMax)
	case MetricTemperatureMax:
		return day.TemperatureMax, true
	case MetricTemperatureMin:
		return day.TemperatureMin, true
	default:
		return 0, false
	}
}

func hourlyMetric(hour HourlyRecord, m Metric) (float64, bool) {
	switch m {
	case MetricWindGusts:
		return deref(hour.WindGusts)
	case MetricPrecipProb:
		return deref(hour.PrecipitationProbability)
	case MetricTemperature:
		return hour.Temperature, true
	case MetricPrecipIntensity:
		return hour.Precipitation, true
	default:
		return 0, false
	}
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
