package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for failure budget tracking.
var (
	portalFailuresInWindow = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beu_portal_failures_in_window",
		Help: "Number of transient portal failures in the current budget window",
	})

	portalFailuresRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_portal_failures_recorded_total",
		Help: "Total number of transient portal failures recorded by class",
	}, []string{"class"})

	portalBudgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beu_portal_budget_blocks_total",
		Help: "Total number of requests blocked by the failure budget",
	})

	portalBudgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beu_portal_budget_throttles_total",
		Help: "Total number of requests throttled by the failure budget",
	})
)

// ThrottleDelay is how long a request waits in the warning state.
const ThrottleDelay = time.Second

// Tracker records portal failures and gates requests.
// It implements client.FailureBudget.
type Tracker struct {
	redis      *redis.Client
	thresholds Thresholds
	logger     zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewTracker creates a new failure budget tracker.
func NewTracker(redisClient *redis.Client, thresholds Thresholds, logger zerolog.Logger) *Tracker {
	if thresholds.Window <= 0 {
		thresholds.Window = DefaultThresholds().Window
	}
	return &Tracker{
		redis:      redisClient,
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// GetState retrieves the failure budget state from Redis, dropping
// failures that have left the window.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	now := t.now()
	cutoff := strconv.FormatInt(now.Add(-t.thresholds.Window).UnixMilli(), 10)

	pipe := t.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, RedisKeyFailures, "-inf", "("+cutoff)
	count := pipe.ZCard(ctx, RedisKeyFailures)
	oldest := pipe.ZRangeWithScores(ctx, RedisKeyFailures, 0, 0)
	newest := pipe.ZRevRangeWithScores(ctx, RedisKeyFailures, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read failure budget from redis: %w", err)
	}

	state := &State{
		Failures:   int(count.Val()),
		thresholds: t.thresholds,
	}
	if z := oldest.Val(); len(z) > 0 {
		state.OldestFailure = time.UnixMilli(int64(z[0].Score))
	}
	if z := newest.Val(); len(z) > 0 {
		state.LastFailure = time.UnixMilli(int64(z[0].Score))
	}
	state.UpdateHealth()

	portalFailuresInWindow.Set(float64(state.Failures))
	return state, nil
}

// RecordFailure adds one transient failure of the given class.
func (t *Tracker) RecordFailure(ctx context.Context, class string) error {
	now := t.now()

	pipe := t.redis.Pipeline()
	pipe.ZAdd(ctx, RedisKeyFailures, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: class + ":" + uuid.NewString(),
	})
	pipe.PExpire(ctx, RedisKeyFailures, t.thresholds.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store failure in redis: %w", err)
	}

	portalFailuresRecordedTotal.WithLabelValues(class).Inc()
	t.logger.Debug().Str("class", class).Msg("Portal failure recorded")
	return nil
}

// Reset clears all recorded failures.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.redis.Del(ctx, RedisKeyFailures).Err(); err != nil {
		return fmt.Errorf("reset failure budget: %w", err)
	}
	portalFailuresInWindow.Set(0)
	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on the
// current failure budget.
// Returns false if the budget is exhausted.
// Returns true but may sleep for throttling if in warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get failure budget state: %w", err)
	}

	// Critical: Block all requests
	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("failures", state.Failures).
			Dur("recovery_in", state.TimeUntilRecovery(t.now())).
			Msg("Portal failure budget exhausted - blocking request")

		portalBudgetBlocksTotal.Inc()
		return false, nil
	}

	// Warning: Apply throttling
	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("failures", state.Failures).
			Msg("Portal failure budget warning - throttling request")

		portalBudgetThrottlesTotal.Inc()
		t.sleep(ctx, ThrottleDelay)
	}

	return true, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
