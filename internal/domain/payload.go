package domain

import (
	"encoding/json"
	"time"
)

// Endpoint tags identify which upstream API produced a raw payload. They
// appear in raw file names and route payloads during replay.
const (
	EndpointForecast = "forecast"
	EndpointArchive  = "archive"
)

// RawPayload is a verbatim upstream response body plus the identity needed to
// reprocess it later. Body is kept exactly as received, so any parsing or
// cleaning bug can be fixed and the payload replayed.
type RawPayload struct {
	Endpoint     string          `json:"endpoint"`
	LocationSlug string          `json:"location"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Body         json.RawMessage `json:"body"`
}

// NewRawPayload stamps a response body with its origin. FetchedAt comes from
// the package clock in UTC.
func NewRawPayload(endpoint string, loc Location, body []byte) RawPayload {
	return RawPayload{
		Endpoint:     endpoint,
		LocationSlug: loc.Slug(),
		FetchedAt:    clock.Now().UTC(),
		Body:         json.RawMessage(body),
	}
}
