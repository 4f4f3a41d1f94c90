package domain

import "fmt"

// InvalidRequestError reports a request that the upstream API cannot serve
// and that retrying cannot fix: out-of-range parameters caught before the
// network, or a non-retryable 4xx response. The caller must change the
// request.
type InvalidRequestError struct {
	Op         string // operation that rejected the request: "forecast", "archive", "geocode"
	Reason     string
	StatusCode int // HTTP status when the rejection came from upstream, 0 otherwise
}

func (e InvalidRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("invalid %s request (status %d): %s", e.Op, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("invalid %s request: %s", e.Op, e.Reason)
}

// TransientUpstreamError reports an upstream failure that survived the whole
// retry sequence: connect errors, timeouts, HTTP 5xx, HTTP 429, or the
// caller's context expiring between attempts. The last underlying error is
// wrapped and reachable via errors.Is/As.
type TransientUpstreamError struct {
	URL        string
	Attempts   int
	StatusCode int // last HTTP status, 0 when the failure was transport-level
	Err        error
}

func (e TransientUpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream request to %s failed after %d attempt(s): status %d", e.URL, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("upstream request to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e TransientUpstreamError) Unwrap() error { return e.Err }

// GeocodingError reports a geocoding response that could not be interpreted:
// malformed body, or a result set whose entries lack required fields.
type GeocodingError struct {
	Query  string
	Reason string
	Err    error
}

func (e GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode %q: %s: %v", e.Query, e.Reason, e.Err)
	}
	return fmt.Sprintf("geocode %q: %s", e.Query, e.Reason)
}

func (e GeocodingError) Unwrap() error { return e.Err }

// UnknownWeatherCodeError reports a WMO weather code absent from the
// translation table.
type UnknownWeatherCodeError struct {
	Code int
}

func (e UnknownWeatherCodeError) Error() string {
	return fmt.Sprintf("unknown weather code %d", e.Code)
}
