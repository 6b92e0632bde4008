package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/beu-results/internal/testutil"
	"github.com/Sternrassler/beu-results/pkg/cache"
	"github.com/Sternrassler/beu-results/pkg/client"
	"github.com/Sternrassler/beu-results/pkg/parser"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, portal *testutil.MockPortal, opts ...Option) *Orchestrator {
	t.Helper()
	fetcher, err := client.NewFetcher(client.Config{
		UserAgent: "beu-results-test/1.0",
		Timeout:   5 * time.Second,
		Retry:     client.RetryConfig{MaxAttempts: 2},
	})
	require.NoError(t, err)

	return New(fetcher, parser.Default(), Config{Years: map[string]string{"2023": portal.URL()}}, opts...)
}

func kinds(entries []result.Entry) []result.Kind {
	out := make([]result.Kind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestDefaultYears(t *testing.T) {
	years := DefaultYears()
	require.Len(t, years, 5)
	assert.Equal(t, "http://results.beup.ac.in/ResultsBTech1stSem2023_B2023Pub.aspx", years["2023"])
	assert.Contains(t, years, "2022")
	assert.Contains(t, years, "2026")
}

func TestPortalURL(t *testing.T) {
	tests := []struct {
		name     string
		semester string
		regNo    string
		want     string
	}{
		{"semester first", "I", "22104134010", "?Sem=I&RegNo=22104134010"},
		{"later semester", "IV", "22104134901", "?Sem=IV&RegNo=22104134901"},
		{"escaped values", "I&II", "221 04", "?Sem=I%26II&RegNo=221+04"},
	}

	base := "http://results.beup.ac.in/ResultsBTech1stSem2023_B2023Pub.aspx"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, base+tt.want, PortalURL(base, tt.semester, tt.regNo))
		})
	}
}

func TestOrchestrator_UnknownYear(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	_, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2019", RegNo: "22104134010"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownYear))
	assert.Equal(t, 0, portal.TotalRequests())
}

func TestOrchestrator_InvalidRegNo(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	_, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2023", RegNo: "22104134ABC"})
	assert.True(t, errors.Is(err, planner.ErrInvalidRegNo))
}

func TestOrchestrator_Run(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	portal.SetPage("22104134010", testutil.SamplePage("22104134010"))
	portal.SetPage("22104134012", testutil.SamplePage("22104134012"))
	portal.FailTimes("22104134013", -1)

	entries, err := newTestOrchestrator(t, portal).Run(context.Background(),
		Request{Year: "2023", Semester: "I", RegNo: "22104134010"})
	require.NoError(t, err)

	assert.Equal(t, []result.Kind{
		result.KindRecord, result.KindSeparator,
		result.KindRecord, result.KindSeparator,
		result.KindError,
	}, kinds(entries))

	records := result.Records(entries)
	assert.Equal(t, "22104134010", records[0].RegistrationNo)
	assert.Equal(t, "22104134012", records[1].RegistrationNo)
	assert.NotEmpty(t, entries[4].Error)

	assert.Equal(t, []string{
		"22104134010", "22104134011", "22104134012",
		"22104134013", "22104134013", "22104134014",
	}, portal.Order())
	for _, sem := range portal.Semesters() {
		assert.Equal(t, "I", sem)
	}
}

func TestOrchestrator_DefaultSemester(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	_, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2023", RegNo: "22104134010"})
	require.NoError(t, err)
	assert.Equal(t, "I", portal.Semesters()[0])
}

func TestOrchestrator_QueryOrder(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	_, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2023", Semester: "III", RegNo: "22104134010"})
	require.NoError(t, err)

	queries := portal.Queries()
	require.Len(t, queries, 5)
	assert.ElementsMatch(t, []string{
		"Sem=III&RegNo=22104134010",
		"Sem=III&RegNo=22104134011",
		"Sem=III&RegNo=22104134012",
		"Sem=III&RegNo=22104134013",
		"Sem=III&RegNo=22104134014",
	}, queries)
}

func TestOrchestrator_NoRecordsIsEmpty(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	entries, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2023", RegNo: "22104134040"})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
	assert.Equal(t, 5, portal.TotalRequests())
}

func TestOrchestrator_AllFailed(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	for _, n := range []string{"22104134010", "22104134011", "22104134012", "22104134013", "22104134014"} {
		portal.FailTimes(n, -1)
	}

	entries, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2023", RegNo: "22104134010"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllFailed))
	assert.Len(t, result.Errors(entries), 5)
}

func TestOrchestrator_DropsSuffixesPast999(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()

	_, err := newTestOrchestrator(t, portal).Run(context.Background(), Request{Year: "2023", RegNo: "22104134998"})
	require.NoError(t, err)
	assert.Equal(t, []string{"22104134998", "22104134999"}, portal.Order())
}

func TestOrchestrator_UsesCache(t *testing.T) {
	portal := testutil.NewMockPortal()
	defer portal.Close()
	portal.SetPage("22104134010", testutil.SamplePage("22104134010"))

	results := cache.NewLayered(time.Hour, cache.NewMemoryLayer(64, time.Hour))
	orch := newTestOrchestrator(t, portal, WithCache(results))
	req := Request{Year: "2023", Semester: "I", RegNo: "22104134010"}

	first, err := orch.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 5, portal.TotalRequests())

	second, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The cached record is served locally; only the four misses go out again.
	assert.Equal(t, 1, portal.RequestCount("22104134010"))
	assert.Equal(t, 9, portal.TotalRequests())
}

func TestOrchestrator_Years(t *testing.T) {
	orch := New(nil, nil, Config{})
	assert.Equal(t, []string{"2022", "2023", "2024", "2025", "2026"}, orch.Years())
}

func TestSemester(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"I", "I", true},
		{"iv", "IV", true},
		{" VIII ", "VIII", true},
		{"1st", "I", true},
		{"3RD", "III", true},
		{"8th", "VIII", true},
		{"IX", "", false},
		{"", "", false},
		{"first", "", false},
	}
	for _, tt := range tests {
		got, ok := Semester(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
