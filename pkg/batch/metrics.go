package batch

import (
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_batch_runs_total",
		Help: "Total batch runs by mode and outcome",
	}, []string{"mode", "outcome"})

	batchEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beu_batch_entries_total",
		Help: "Total entries produced by kind",
	}, []string{"kind"})

	subBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beu_subbatch_duration_seconds",
		Help:    "Duration of one sub-batch by runner",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"runner"})
)

func observeRun(mode string, entries []result.Entry, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	batchRunsTotal.WithLabelValues(mode, outcome).Inc()

	for _, e := range entries {
		if e.Kind != result.KindSeparator {
			batchEntriesTotal.WithLabelValues(string(e.Kind)).Inc()
		}
	}
}
