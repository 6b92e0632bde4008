// Package client provides the resilient fetcher used to download result
// pages from the BEU results portal.
//
// A fetch ends in one of three outcomes: Success with the page body,
// NotFound when the portal confirms there is no such record, or Error once
// the retry budget is spent on transient failures.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for portal requests.
var (
	portalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_portal_requests_total",
		Help: "Total portal fetches by outcome",
	}, []string{"outcome"})

	portalRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "beu_portal_request_duration_seconds",
		Help:    "Duration of a complete portal fetch including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	portalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_portal_errors_total",
		Help: "Total failed portal attempts by class",
	}, []string{"class"})
)

// NotFoundMarker is the phrase the portal renders for unknown registration numbers.
const NotFoundMarker = "No Record Found !!!"

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx answers.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx answers.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassBlocked represents attempts refused by the failure budget.
	ErrorClassBlocked ErrorClass = "blocked"
)

// Status is the kind of a fetch Outcome.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Outcome is the result of one fetch, including all of its retries.
type Outcome struct {
	Status   Status
	Body     string
	Err      error
	Attempts int

	cause error
}

// Message returns the message of the last error seen, or "" for non-errors.
func (o Outcome) Message() string {
	if o.cause != nil {
		return o.cause.Error()
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}

// FailureBudget gates portal attempts on recent transient failures.
// It is implemented by ratelimit.Tracker.
type FailureBudget interface {
	ShouldAllowRequest(ctx context.Context) (bool, error)
	RecordFailure(ctx context.Context, class string) error
}

// Config holds the fetcher configuration.
type Config struct {
	// UserAgent is sent with every portal request.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry controls attempts and backoff for transient failures.
	Retry RetryConfig

	// NotFoundMarker overrides the "no record" phrase.
	NotFoundMarker string

	// Budget is optional.
	Budget FailureBudget
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:      "beu-results/0.1.0",
		Timeout:        30 * time.Second,
		Retry:          DefaultRetryConfig(),
		NotFoundMarker: NotFoundMarker,
	}
}

// Fetcher retrieves portal pages with bounded retries.
type Fetcher struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	after      afterFunc
}

// NewFetcher creates a new fetcher.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.NotFoundMarker == "" {
		cfg.NotFoundMarker = NotFoundMarker
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "portal-fetcher").Logger(),
		after:  time.After,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// Fetch retrieves url and classifies the response.
func (f *Fetcher) Fetch(ctx context.Context, url string) Outcome {
	startTime := time.Now()
	defer func() {
		portalRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	logger := logging.Enrich(ctx, f.logger).With().Str("url", url).Logger()

	var outcome Outcome
	var lastErr error
	attempts := 0

	err := retryWithBackoff(ctx, f.config.Retry, f.after, logger, func() error {
		attempts++

		if f.config.Budget != nil {
			allowed, err := f.config.Budget.ShouldAllowRequest(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("Failure budget check failed")
			} else if !allowed {
				lastErr = ErrRequestBlocked
				return ErrRequestBlocked
			}
		}

		status, body, err := f.get(ctx, url)
		if err != nil {
			lastErr = &PortalError{ErrorClass: ErrorClassNetwork, Err: err}
			f.recordFailure(ctx, ErrorClassNetwork)
			logger.Debug().Err(err).Int("attempt", attempts).Msg("Portal request failed")
			return lastErr
		}

		switch {
		case status == http.StatusOK:
			if strings.Contains(body, f.config.NotFoundMarker) {
				outcome = Outcome{Status: StatusNotFound}
			} else {
				outcome = Outcome{Status: StatusSuccess, Body: body}
			}
			return nil
		case status >= 500:
			lastErr = &PortalError{StatusCode: status, ErrorClass: ErrorClassServer, Message: http.StatusText(status)}
			f.recordFailure(ctx, ErrorClassServer)
			return lastErr
		case status >= 400:
			lastErr = &PortalError{StatusCode: status, ErrorClass: ErrorClassClient, Message: http.StatusText(status)}
			f.recordFailure(ctx, ErrorClassClient)
			return lastErr
		default:
			// Other 2xx/3xx answers carry no result page.
			outcome = Outcome{Status: StatusNotFound}
			return nil
		}
	}, classifyError)

	if err != nil {
		outcome = Outcome{Status: StatusError, Err: err, cause: lastErr}
		if errors.Is(err, ErrContextCancelled) {
			outcome.cause = nil
		}
	}
	outcome.Attempts = attempts

	portalRequestsTotal.WithLabelValues(string(outcome.Status)).Inc()
	logger.Debug().
		Str("outcome", string(outcome.Status)).
		Int("attempts", attempts).
		Dur("duration", time.Since(startTime)).
		Msg("Portal fetch complete")

	return outcome
}

// get performs a single GET and returns status and body.
func (f *Fetcher) get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, string(body), nil
}

func (f *Fetcher) recordFailure(ctx context.Context, class ErrorClass) {
	portalErrorsTotal.WithLabelValues(string(class)).Inc()
	if f.config.Budget == nil {
		return
	}
	if err := f.config.Budget.RecordFailure(ctx, string(class)); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to record portal failure")
	}
}
