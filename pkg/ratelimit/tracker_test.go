package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/beu-results/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, th Thresholds) (*Tracker, *[]time.Duration) {
	t.Helper()
	client := testutil.StartRedis(t)

	tracker := NewTracker(client, th, zerolog.Nop())
	slept := &[]time.Duration{}
	tracker.sleep = func(_ context.Context, d time.Duration) {
		*slept = append(*slept, d)
	}
	return tracker, slept
}

func TestTracker_EmptyStateIsHealthy(t *testing.T) {
	tracker, _ := newTestTracker(t, DefaultThresholds())

	state, err := tracker.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, state.Failures)
	assert.True(t, state.IsHealthy)

	allowed, err := tracker.ShouldAllowRequest(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTracker_ThrottlesThenBlocks(t *testing.T) {
	ctx := context.Background()
	tracker, slept := newTestTracker(t, Thresholds{Window: time.Minute, Warning: 2, Critical: 4})

	require.NoError(t, tracker.RecordFailure(ctx, "network"))
	allowed, err := tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, *slept)

	require.NoError(t, tracker.RecordFailure(ctx, "server"))
	allowed, err = tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, []time.Duration{ThrottleDelay}, *slept)

	require.NoError(t, tracker.RecordFailure(ctx, "network"))
	require.NoError(t, tracker.RecordFailure(ctx, "network"))
	allowed, err = tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)

	state, err := tracker.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Failures)
	assert.False(t, state.LastFailure.Before(state.OldestFailure))
}

func TestTracker_FailuresLeaveWindow(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, Thresholds{Window: time.Minute, Warning: 1, Critical: 2})

	base := time.Now()
	tracker.now = func() time.Time { return base.Add(-2 * time.Minute) }
	require.NoError(t, tracker.RecordFailure(ctx, "network"))
	require.NoError(t, tracker.RecordFailure(ctx, "network"))

	tracker.now = func() time.Time { return base }
	state, err := tracker.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Failures)

	allowed, err := tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTracker_Reset(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, Thresholds{Window: time.Minute, Critical: 1})

	require.NoError(t, tracker.RecordFailure(ctx, "server"))
	allowed, err := tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, tracker.Reset(ctx))
	allowed, err = tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}
