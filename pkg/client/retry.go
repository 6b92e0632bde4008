package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	portalRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_portal_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	portalRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beu_portal_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	portalRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_portal_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Jitter randomizes each wait by up to ±Jitter (0.2 = ±20%). Zero disables it.
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration:
// three attempts, waiting 1s then 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// normalized fills zero values with defaults.
func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff < 0 {
		c.InitialBackoff = 0
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	return c
}

// afterFunc returns a channel that fires once d has elapsed.
type afterFunc func(d time.Duration) <-chan time.Time

// retryWithBackoff executes fn with exponential backoff between attempts.
// classify decides, per error, whether another attempt is worthwhile.
// It respects context cancellation while waiting.
func retryWithBackoff(
	ctx context.Context,
	config RetryConfig,
	after afterFunc,
	logger zerolog.Logger,
	fn func() error,
	classify func(error) ErrorClass,
) error {
	config = config.normalized()
	if after == nil {
		after = time.After
	}

	var lastErr error
	var lastClass ErrorClass
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		lastClass = classify(err)

		if !shouldRetry(lastClass) {
			return lastErr
		}

		// No wait after the final attempt
		if attempt >= config.MaxAttempts {
			break
		}

		wait := backoff
		if config.Jitter > 0 {
			wait = time.Duration(float64(backoff) * (1 - config.Jitter + rand.Float64()*2*config.Jitter))
		}

		portalRetriesTotal.WithLabelValues(string(lastClass)).Inc()
		portalRetryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(wait.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(lastClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-after(wait):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	portalRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(lastClass)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
