package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// MinRegNoLength is the shortest registration number the edge mode accepts.
const MinRegNoLength = 11

// DefaultMaxConcurrency bounds in-flight sub-batches.
// 17 covers a full regular plus lateral roster.
const DefaultMaxConcurrency = 17

// EdgeRequest is an edge mode lookup.
type EdgeRequest struct {
	Semester string
	Year     string
	RegNo    string
}

// SubBatchRunner runs one sub-batch of an edge request.
// Implemented by peer.Client and LocalRunner.
type SubBatchRunner interface {
	RunSubBatch(ctx context.Context, req EdgeRequest, b planner.SubBatch) ([]result.Entry, error)
}

// SubBatchResult is the outcome of one dispatched sub-batch.
// Err is set when the sub-batch failed as a whole; an empty Entries with a
// nil Err means the sub-batch had no records.
type SubBatchResult struct {
	Batch   planner.SubBatch
	Entries []result.Entry
	Err     error
}

// Output returns the entries this result contributes to the response.
func (r SubBatchResult) Output() []result.Entry {
	if r.Err != nil {
		return []result.Entry{result.Failure(r.Err.Error())}
	}
	return r.Entries
}

// Aggregator fans an edge request out over sub-batches.
type Aggregator struct {
	runner         SubBatchRunner
	maxConcurrency int
	logger         zerolog.Logger
}

// NewAggregator creates an aggregator running at most maxConcurrency
// sub-batches at a time.
func NewAggregator(runner SubBatchRunner, maxConcurrency int) *Aggregator {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Aggregator{
		runner:         runner,
		maxConcurrency: maxConcurrency,
		logger:         log.With().Str("component", "aggregator").Logger(),
	}
}

// Run plans the roster around req.RegNo, runs every sub-batch and joins the
// results in plan order.
// A failed sub-batch becomes an error entry and never cancels the others.
// When every sub-batch failed, the entries are returned with ErrAllFailed.
func (a *Aggregator) Run(ctx context.Context, req EdgeRequest) ([]result.Entry, error) {
	if len(req.RegNo) < MinRegNoLength {
		return nil, fmt.Errorf("%w: %q", ErrShortRegNo, req.RegNo)
	}

	batches, err := planner.Extended(req.RegNo)
	if err != nil {
		return nil, err
	}

	results := a.Dispatch(ctx, req, batches)

	var entries []result.Entry
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		entries = append(entries, r.Output()...)
	}

	if entries == nil {
		entries = []result.Entry{}
	}

	if len(results) > 0 && failed == len(results) {
		logger := logging.Enrich(ctx, a.logger)
		logger.Error().
			Str("reg_no", req.RegNo).
			Int("sub_batches", len(results)).
			Msg("Every sub-batch failed")
		observeRun("edge", entries, ErrAllFailed)
		return entries, fmt.Errorf("%w: %d sub-batches", ErrAllFailed, failed)
	}

	observeRun("edge", entries, nil)
	return entries, nil
}

// Dispatch runs every sub-batch concurrently and waits for all of them.
// Result i belongs to batches[i].
func (a *Aggregator) Dispatch(ctx context.Context, req EdgeRequest, batches []planner.SubBatch) []SubBatchResult {
	start := time.Now()
	logger := logging.Enrich(ctx, a.logger)
	results := make([]SubBatchResult, len(batches))

	// Plain Group: a failed sub-batch must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)

	for i, b := range batches {
		g.Go(func() error {
			subStart := time.Now()
			entries, err := a.runner.RunSubBatch(ctx, req, b)
			subBatchDuration.WithLabelValues("edge").Observe(time.Since(subStart).Seconds())
			if err != nil {
				logger.Warn().Err(err).Str("first", b.First()).Msg("Sub-batch failed")
			}
			results[i] = SubBatchResult{Batch: b, Entries: entries, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info().
		Str("reg_no", req.RegNo).
		Int("sub_batches", len(batches)).
		Dur("duration", time.Since(start)).
		Msg("Edge batch complete")

	return results
}

// LocalRunner runs sub-batches through this process's Orchestrator.
type LocalRunner struct {
	Orchestrator *Orchestrator
}

// RunSubBatch implements SubBatchRunner.
func (l LocalRunner) RunSubBatch(ctx context.Context, req EdgeRequest, b planner.SubBatch) ([]result.Entry, error) {
	semester, ok := Semester(req.Semester)
	if !ok {
		semester = DefaultSemester
	}

	entries, err := l.Orchestrator.RunSubBatch(ctx, req.Year, semester, b)
	if err != nil {
		return nil, fmt.Errorf("batch starting with reg_no %s: %w", b.First(), err)
	}
	return entries, nil
}
