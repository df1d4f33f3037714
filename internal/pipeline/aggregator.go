package pipeline

import (
	"context"
	"sort"
	"time"

	"statsingest/internal/model"
	"statsingest/internal/repository"
)

// ResultStore is the subset of internal/storage.S3Store the aggregator
// depends on, narrowed for testability.
type ResultStore interface {
	PutGzip(ctx context.Context, runID string, result model.AggregatedResult) (string, error)
}

// defaultToleratedFailurePct is §4.5/§6's default gate: a run with an
// error rate at or below this threshold is SUCCEEDED, otherwise FAILED.
const defaultToleratedFailurePct = 5.0

// recommendationRule is one row of the deterministic recommendation
// table §4.5 calls for: a fixed, ordered set of (predicate, message)
// pairs evaluated against the run's computed metrics.
type recommendationRule struct {
	predicate func(totals model.Totals, rates model.Rates, throughput model.Throughput) bool
	message   string
}

var recommendationRules = []recommendationRule{
	{
		predicate: func(_ model.Totals, rates model.Rates, _ model.Throughput) bool { return rates.ErrorRate > 0.10 },
		message:   "error rate exceeds 10%: investigate input quality",
	},
	{
		predicate: func(_ model.Totals, _ model.Rates, t model.Throughput) bool { return t.AvgBatchMS > 5000 },
		message:   "average batch time exceeds 5s: consider a smaller batch size",
	},
	{
		predicate: func(totals model.Totals, _ model.Rates, _ model.Throughput) bool { return totals.Processed == 0 },
		message:   "no rows were processed: verify the input file is not empty",
	},
}

// Aggregator is C5: it sums per-batch outcomes into run totals, writes the
// compressed artifact, and completes the run-metadata row.
type Aggregator struct {
	store               ResultStore
	runs                repository.RunRepository
	toleratedFailurePct float64
}

// NewAggregator builds an Aggregator. toleratedFailurePct defaults to 5
// when <= 0.
func NewAggregator(store ResultStore, runs repository.RunRepository, toleratedFailurePct float64) *Aggregator {
	if toleratedFailurePct <= 0 {
		toleratedFailurePct = defaultToleratedFailurePct
	}
	return &Aggregator{store: store, runs: runs, toleratedFailurePct: toleratedFailurePct}
}

// Aggregate implements the §4.5 contract: aggregate(run_id,
// batch_outcomes[], map_statistics) -> AggregatedResult. It also performs
// the result write and the run-terminal transition as side effects,
// matching the teacher's pattern of a single call doing both computation
// and persistence at the pipeline's final stage.
func (a *Aggregator) Aggregate(ctx context.Context, runID string, outcomes []model.BatchOutcome, startedAt time.Time) (model.AggregatedResult, error) {
	result := Summarize(runID, outcomes, startedAt)

	outputRef, err := a.store.PutGzip(ctx, runID, result)
	if err != nil {
		return result, err
	}

	status := model.RunStatusSucceeded
	if result.Rates.ErrorRate*100 > a.toleratedFailurePct {
		status = model.RunStatusFailed
	}

	if err := a.runs.Complete(ctx, runID, status, result.Totals.Succeeded, result.Totals.Failed, outputRef); err != nil {
		return result, err
	}

	return result, nil
}

// Summarize is the pure computation half of §4.5: sums counters, derives
// rates/throughput, groups errors, and picks recommendations. Separated
// from Aggregate so the math is independently testable without a store.
func Summarize(runID string, outcomes []model.BatchOutcome, startedAt time.Time) model.AggregatedResult {
	var totals model.Totals
	var minBatch, maxBatch int64
	var sumBatchMS int64
	errorCounts := map[string]int{}
	retryableErrors := map[string]bool{}

	for i, o := range outcomes {
		totals.Processed += o.Processed
		totals.Succeeded += o.Succeeded
		totals.Failed += o.Failed

		if i == 0 || o.WallTimeMS < minBatch {
			minBatch = o.WallTimeMS
		}
		if o.WallTimeMS > maxBatch {
			maxBatch = o.WallTimeMS
		}
		sumBatchMS += o.WallTimeMS

		for _, r := range o.PerRowResults {
			if r.Status != model.RowStatusError {
				continue
			}
			errorCounts[r.ErrorKind]++
			retryableErrors[r.ErrorKind] = r.Retryable
		}
	}

	var rates model.Rates
	if totals.Processed > 0 {
		rates.SuccessRate = float64(totals.Succeeded) / float64(totals.Processed)
		rates.ErrorRate = float64(totals.Failed) / float64(totals.Processed)
	}

	var throughput model.Throughput
	duration := time.Since(startedAt).Seconds()
	if duration > 0 {
		throughput.PerSecond = float64(totals.Processed) / duration
	}
	if len(outcomes) > 0 {
		throughput.MinBatchMS = minBatch
		throughput.MaxBatchMS = maxBatch
		throughput.AvgBatchMS = float64(sumBatchMS) / float64(len(outcomes))
	}

	breakdown := breakdownByKind(errorCounts, retryableErrors)
	top := topErrors(breakdown, 5)

	var recommendations []string
	for _, rule := range recommendationRules {
		if rule.predicate(totals, rates, throughput) {
			recommendations = append(recommendations, rule.message)
		}
	}

	return model.AggregatedResult{
		RunID:                runID,
		Totals:               totals,
		Rates:                rates,
		ErrorBreakdownByType: breakdown,
		TopErrors:            top,
		Throughput:           throughput,
		DurationSeconds:      duration,
		Recommendations:      recommendations,
	}
}

func breakdownByKind(counts map[string]int, retryable map[string]bool) []model.ErrorCount {
	out := make([]model.ErrorCount, 0, len(counts))
	for kind, count := range counts {
		out = append(out, model.ErrorCount{Kind: kind, Count: count, Retryable: retryable[kind]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func topErrors(breakdown []model.ErrorCount, n int) []model.ErrorCount {
	if len(breakdown) <= n {
		return breakdown
	}
	return breakdown[:n]
}
