package domain

import "time"

// ForecastOptions bound the forecast horizon. The provider accepts 1 to 16
// days ahead and up to 92 days behind in the same payload.
type ForecastOptions struct {
	ForecastDays int
	PastDays     int
}

// DateRange is a closed archive interval in civil dates. Both ends are
// inclusive and End may not reach past Today.
type DateRange struct {
	Start time.Time
	End   time.Time
}
