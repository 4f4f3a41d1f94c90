// Package upstream provides the retrying HTTP client shared by all
// Open-Meteo endpoint adapters.
package upstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRetryCount   = 3
	defaultRetryWait    = 400 * time.Millisecond
	defaultRetryMaxWait = 5 * time.Second
	defaultUserAgent    = "meteo-etl/1.0 (+https://github.com/vigimeteo/meteo-etl)"
)

// Options configure the client. Zero values fall back to defaults the
// provider tolerates well.
type Options struct {
	UserAgent    string
	Timeout      time.Duration // per-attempt timeout
	RetryCount   int           // retries after the first attempt
	RetryWait    time.Duration // backoff before the first retry
	RetryMaxWait time.Duration // backoff cap
	RPS          float64       // requests per second across all callers; 0 disables limiting
	Burst        int
}

// Client issues GET requests with bounded retries and deterministic doubling
// backoff. Transport failures, HTTP 429 and HTTP 5xx are retried; any other
// 4xx is a caller error and surfaces immediately. Every retry is logged with
// its attempt number and the delay about to be taken.
type Client struct {
	http         *resty.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	metrics      *observability.Metrics
	retryCount   int
	retryWait    time.Duration
	retryMaxWait time.Duration
}

// New builds a Client. The resty transport carries only the per-attempt
// timeout and headers; the retry sequence itself is driven here so that each
// delay is deterministic and loggable.
func New(logger *slog.Logger, metrics *observability.Metrics, opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = defaultRetryCount
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = defaultRetryWait
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = defaultRetryMaxWait
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Client{
		http: resty.New().
			SetHeader("User-Agent", opts.UserAgent).
			SetTimeout(opts.Timeout),
		limiter:      limiter,
		logger:       logger,
		metrics:      metrics,
		retryCount:   opts.RetryCount,
		retryWait:    opts.RetryWait,
		retryMaxWait: opts.RetryMaxWait,
	}
}

// GetJSON fetches rawURL with the given query parameters and returns the
// verbatim response body. endpoint labels logs and metrics ("forecast",
// "geocode", "archive").
//
// Failures map onto the error taxonomy: a non-429 4xx becomes
// domain.InvalidRequestError; exhausted retries or a context that expires
// mid-sequence become domain.TransientUpstreamError.
func (c *Client) GetJSON(ctx context.Context, endpoint, rawURL string, params map[string]string) ([]byte, error) {
	start := time.Now()
	defer func() {
		c.metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var (
		lastStatus int
		lastErr    error
	)
	delay := c.retryWait
	attempts := 0

	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying upstream request",
				"endpoint", endpoint,
				"url", rawURL,
				"attempt", attempt,
				"delay", delay,
				"last_status", lastStatus,
				"error", lastErr,
			)
			c.metrics.UpstreamRetries.WithLabelValues(endpoint).Inc()
			if !sleepWithContext(ctx, delay) {
				c.metrics.UpstreamRequests.WithLabelValues(endpoint, "canceled").Inc()
				return nil, domain.TransientUpstreamError{URL: rawURL, Attempts: attempts, StatusCode: lastStatus, Err: ctx.Err()}
			}
			delay = nextBackoff(delay, c.retryMaxWait)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				c.metrics.UpstreamRequests.WithLabelValues(endpoint, "canceled").Inc()
				return nil, domain.TransientUpstreamError{URL: rawURL, Attempts: attempts, StatusCode: lastStatus, Err: err}
			}
		}

		attempts++
		resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).Get(rawURL)
		if err != nil {
			if ctx.Err() != nil {
				c.metrics.UpstreamRequests.WithLabelValues(endpoint, "canceled").Inc()
				return nil, domain.TransientUpstreamError{URL: rawURL, Attempts: attempts, StatusCode: lastStatus, Err: ctx.Err()}
			}
			lastStatus, lastErr = 0, err
			continue
		}

		status := resp.StatusCode()
		switch {
		case status < http.StatusMultipleChoices:
			c.metrics.UpstreamRequests.WithLabelValues(endpoint, "success").Inc()
			return resp.Body(), nil
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			lastStatus, lastErr = status, nil
			continue
		default:
			c.metrics.UpstreamRequests.WithLabelValues(endpoint, "rejected").Inc()
			return nil, domain.InvalidRequestError{
				Op:         endpoint,
				Reason:     errorReason(resp.Body(), status),
				StatusCode: status,
			}
		}
	}

	c.metrics.UpstreamRequests.WithLabelValues(endpoint, "exhausted").Inc()
	return nil, domain.TransientUpstreamError{URL: rawURL, Attempts: attempts, StatusCode: lastStatus, Err: lastErr}
}

// errorReason extracts the provider's error message. Open-Meteo rejections
// are JSON of the form {"error": true, "reason": "..."}.
func errorReason(body []byte, status int) string {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Reason != "" {
		return payload.Reason
	}
	return http.StatusText(status)
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// sleepWithContext waits for d unless the context ends first. Returns false
// when the context ended.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
