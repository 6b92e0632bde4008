// Package batch runs result lookups for a window of registration numbers.
//
// Two entry points exist:
//
//   - Orchestrator runs the core mode: the five numbers starting at the
//     queried registration number, fetched one after another from the
//     results portal.
//   - Aggregator runs the edge mode: the whole regular and lateral entry
//     roster around the queried number, split into sub-batches that are
//     dispatched concurrently through a SubBatchRunner.
//
// Example usage:
//
//	orch := batch.New(fetcher, parser.Default(), batch.Config{Years: years})
//	entries, err := orch.Run(ctx, batch.Request{Year: "2023", Semester: "I", RegNo: "22104134010"})
//
//	agg := batch.NewAggregator(batch.LocalRunner{Orchestrator: orch}, 12)
//	entries, err = agg.Run(ctx, batch.EdgeRequest{Semester: "1st", Year: "2023", RegNo: "22104134010"})
//
// Every record in the output is followed by a separator entry. Numbers the
// portal does not know are left out; numbers or sub-batches that failed
// appear as error entries in their place.
package batch
