package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/beu-results/internal/testutil"
	"github.com/Sternrassler/beu-results/pkg/batch"
	"github.com/Sternrassler/beu-results/pkg/cache"
	"github.com/Sternrassler/beu-results/pkg/client"
	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/parser"
	"github.com/Sternrassler/beu-results/pkg/peer"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/ratelimit"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T, budget client.FailureBudget) *client.Fetcher {
	t.Helper()
	f, err := client.NewFetcher(client.Config{
		UserAgent: "beu-results-integration/1.0",
		Timeout:   5 * time.Second,
		Retry: client.RetryConfig{
			MaxAttempts:       2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        10 * time.Millisecond,
			BackoffMultiplier: 2,
		},
		Budget: budget,
	})
	require.NoError(t, err)
	return f
}

func newOrchestrator(t *testing.T, portal *testutil.MockPortal, budget client.FailureBudget, opts ...batch.Option) *batch.Orchestrator {
	t.Helper()
	return batch.New(newFetcher(t, budget), parser.Default(),
		batch.Config{Years: map[string]string{"2023": portal.URL()}}, opts...)
}

// TestFullRequestFlow runs a core lookup through both cache layers and
// checks that a second instance is served from Redis.
func TestFullRequestFlow(t *testing.T) {
	redisClient := testutil.StartRedis(t)

	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetPage("22104134010", testutil.SamplePage("22104134010"))
	portal.SetPage("22104134014", testutil.SamplePage("22104134014"))

	shared := cache.NewManager(redisClient)
	newInstance := func() *batch.Orchestrator {
		layered := cache.NewLayered(time.Hour, cache.NewMemoryLayer(64, time.Hour), shared)
		return newOrchestrator(t, portal, nil, batch.WithCache(layered))
	}

	ctx := context.Background()
	req := batch.Request{Year: "2023", Semester: "I", RegNo: "22104134010"}

	first, err := newInstance().Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, result.Records(first), 2)
	require.Equal(t, 5, portal.TotalRequests())

	// A fresh instance has an empty memory layer; Redis answers instead.
	second, err := newInstance().Run(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, portal.RequestCount("22104134010"))
	assert.Equal(t, 1, portal.RequestCount("22104134014"))
	assert.Equal(t, 8, portal.TotalRequests())

	entry, err := shared.Get(ctx, cache.Key{Year: "2023", Semester: "I", RegNo: "22104134014"})
	require.NoError(t, err)
	assert.Equal(t, "STUDENT 22104134014", entry.Result.StudentName)
}

// TestFailureBudgetBlocks checks that portal failures recorded in Redis stop
// further fetches once the critical threshold is reached.
func TestFailureBudgetBlocks(t *testing.T) {
	redisClient := testutil.StartRedis(t)

	portal := testutil.NewMockPortal()
	defer portal.Close()
	for _, n := range []string{"22104134010", "22104134011", "22104134012", "22104134013", "22104134014"} {
		portal.FailTimes(n, -1)
	}

	tracker := ratelimit.NewTracker(redisClient, ratelimit.Thresholds{
		Window:   time.Minute,
		Critical: 3,
	}, logging.NewLogger("failure-tracker"))

	ctx := context.Background()
	entries, err := newOrchestrator(t, portal, tracker).Run(ctx, batch.Request{Year: "2023", RegNo: "22104134010"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, batch.ErrAllFailed))

	messages := result.Errors(entries)
	require.Len(t, messages, 5)
	assert.Contains(t, messages[4], "blocked")

	// 010 twice, 011 once, then the budget is spent.
	assert.Equal(t, 3, portal.TotalRequests())

	state, err := tracker.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Failures)
	assert.True(t, state.NeedsCriticalBlock())

	require.NoError(t, tracker.Reset(ctx))
	allowed, err := tracker.ShouldAllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}

// semesterService serves /<sem>/result the way a deployed core instance does.
func semesterService(t *testing.T, orch *batch.Orchestrator) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/result") {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		entries, err := orch.Run(r.Context(), batch.Request{Year: q.Get("year"), RegNo: q.Get("reg_no")})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}))
}

// TestEdgeFlow aggregates a full roster through peer semester services
// backed by the portal mock.
func TestEdgeFlow(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetPage("22104134001", testutil.SamplePage("22104134001"))
	portal.SetPage("22104134060", testutil.SamplePage("22104134060"))
	portal.SetPage("23104134925", testutil.SamplePage("23104134925"))
	for i := 16; i <= 20; i++ {
		portal.FailTimes(planner.Format("22104134", i), -1)
	}

	peers := semesterService(t, newOrchestrator(t, portal, nil))
	defer peers.Close()

	agg := batch.NewAggregator(peer.New(peer.Config{URLTemplate: peers.URL + "/%s"}), 0)
	entries, err := agg.Run(context.Background(), batch.EdgeRequest{Semester: "1st", Year: "2023", RegNo: "22104134010"})
	require.NoError(t, err)

	records := result.Records(entries)
	require.Len(t, records, 3)
	assert.Equal(t, "22104134001", records[0].RegistrationNo)
	assert.Equal(t, "22104134060", records[1].RegistrationNo)
	assert.Equal(t, "23104134925", records[2].RegistrationNo)

	errs := result.Errors(entries)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Failed to fetch data for batch starting with reg_no: 22104134016. Error: "))
}
