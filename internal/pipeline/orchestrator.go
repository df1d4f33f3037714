package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
)

// Orchestrator ties C1 through C5 into the run-scoped state machine
// described in §2: C1 -> C2 -> (fail -> C5 terminal-error | pass -> C3 ->
// parallel C4 instances -> C5). It generalizes the teacher's
// producer/worker-pool/join shape in processor.Run into this multi-stage
// form.
type Orchestrator struct {
	dispatcher     *Dispatcher
	validator      *Validator
	worker         *Worker
	aggregator     *Aggregator
	runs           repository.RunRepository
	audit          repository.AuditRepository
	logger         *zap.Logger
	batchMax       int
	maxConcurrency int
	runTimeout     time.Duration
	workerTimeout  time.Duration
}

// Config configures the Orchestrator's batching and concurrency limits,
// mirroring config.ProcessingConfig.
type Config struct {
	BatchMax       int
	MaxConcurrency int
	RunTimeout     time.Duration
	WorkerTimeout  time.Duration
}

// NewOrchestrator wires the C1-C5 stages into one run-scoped driver.
func NewOrchestrator(dispatcher *Dispatcher, validator *Validator, worker *Worker, aggregator *Aggregator, runs repository.RunRepository, audit repository.AuditRepository, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 25
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 600 * time.Second
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = 30 * time.Second
	}
	return &Orchestrator{
		dispatcher:     dispatcher,
		validator:      validator,
		worker:         worker,
		aggregator:     aggregator,
		runs:           runs,
		audit:          audit,
		logger:         logger,
		batchMax:       cfg.BatchMax,
		maxConcurrency: cfg.MaxConcurrency,
		runTimeout:     cfg.RunTimeout,
		workerTimeout:  cfg.WorkerTimeout,
	}
}

// Run executes one full run of the pipeline against sourceRef. It returns
// the final AggregatedResult, or an error when the run was rejected
// outright (duplicate start, dispatch failure), when the file failed
// fetch/header/encoding/size validation (the run is then completed as
// FAILED), or when writing the aggregated result or terminal status failed.
func (o *Orchestrator) Run(ctx context.Context, sourceRef string) (model.AggregatedResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	startedAt := time.Now()

	start, err := o.dispatcher.Start(runCtx, sourceRef, startedAt)
	if err != nil {
		return model.AggregatedResult{}, err
	}
	if !start.Accepted {
		o.logger.Info("run_duplicate", zap.String("source_ref", sourceRef), zap.String("run_id", start.RunID))
		return model.AggregatedResult{}, errs.NewDuplicateError(start.RunID)
	}
	runID := start.RunID

	o.logger.Info("run_started", zap.String("run_id", runID), zap.String("source_ref", sourceRef))

	validation, err := o.validator.Validate(runCtx, sourceRef)
	if err != nil || !validation.Valid {
		return o.terminalError(runCtx, runID, startedAt, err)
	}

	o.logger.Info("run_validated",
		zap.String("run_id", runID),
		zap.Int("row_count", validation.Statistics.RowCount),
		zap.Int("row_errors", len(validation.Errors)),
	)

	if err := o.runs.UpdateProgress(runCtx, runID, validation.Statistics.RowCount, 0, len(validation.Errors)); err != nil {
		o.logger.Warn("progress_update_failed", zap.String("run_id", runID), zap.Error(err))
	}

	batches := Partition(runID, validation.Rows, o.batchMax)
	outcomes := o.runBatches(runCtx, batches)

	// Row-level validation failures never reach a worker, but they still
	// count against the run's error total and need a per_row_results
	// entry of their own, matching the spec's "every error surfaces in
	// the aggregated result" requirement.
	if len(validation.Errors) > 0 {
		outcomes = append(outcomes, validationErrorsToOutcome(runID, validation.Errors))
	}

	result, err := o.aggregator.Aggregate(runCtx, runID, outcomes, startedAt)
	if err != nil {
		o.logger.Error("aggregate_failed", zap.String("run_id", runID), zap.Error(err))
		return result, err
	}

	o.logger.Info("run_finished",
		zap.String("run_id", runID),
		zap.Int("processed", result.Totals.Processed),
		zap.Float64("error_rate", result.Rates.ErrorRate),
	)

	return result, nil
}

// runBatches dispatches batches to at most o.maxConcurrency concurrent
// Worker invocations, generalizing the teacher's channel/waitgroup pool
// from a flat consumer loop into a bounded fan-out over batches. Batch
// order in the returned slice is unspecified — §5 requires the aggregator
// not assume inter-batch ordering.
func (o *Orchestrator) runBatches(ctx context.Context, batches []model.Batch) []model.BatchOutcome {
	if len(batches) == 0 {
		return nil
	}

	jobs := make(chan model.Batch, len(batches))
	for _, b := range batches {
		jobs <- b
	}
	close(jobs)

	results := make(chan model.BatchOutcome, len(batches))
	var wg sync.WaitGroup

	workers := o.maxConcurrency
	if workers > len(batches) {
		workers = len(batches)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				batchCtx, cancel := context.WithTimeout(ctx, o.workerTimeout)
				outcome := o.worker.ProcessBatch(batchCtx, batch)
				cancel()
				results <- outcome
			}
		}()
	}

	wg.Wait()
	close(results)

	outcomes := make([]model.BatchOutcome, 0, len(batches))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// terminalError handles a §4.2 header/encoding/size validation failure:
// the run short-circuits straight to FAILED with no batches dispatched,
// per the spec's "invalid header" end-to-end scenario.
func (o *Orchestrator) terminalError(ctx context.Context, runID string, startedAt time.Time, validationErr error) (model.AggregatedResult, error) {
	o.logger.Error("run_validation_failed", zap.String("run_id", runID), zap.Error(validationErr))

	entry := model.AuditEntry{
		RunID:        runID,
		Timestamp:    time.Now().UTC(),
		EventType:    model.AuditEventRunTerminated,
		Level:        model.AuditLevelError,
		FunctionName: "Orchestrator.Run",
		Message:      "run failed validation",
		Metadata:     map[string]interface{}{"err": errorMessage(validationErr)},
	}
	if err := o.audit.AppendBatch(ctx, []model.AuditEntry{entry}); err != nil {
		o.logger.Warn("audit_append_failed", zap.String("run_id", runID), zap.Error(err))
	}

	if err := o.runs.Complete(ctx, runID, model.RunStatusFailed, 0, 0, ""); err != nil {
		o.logger.Warn("run_complete_failed", zap.String("run_id", runID), zap.Error(err))
	}

	result := model.AggregatedResult{RunID: runID, DurationSeconds: time.Since(startedAt).Seconds()}
	return result, validationErr
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// validationErrorsToOutcome folds row-level validation failures into a
// synthetic BatchOutcome so they are counted in the aggregated totals
// alongside worker-produced row results.
func validationErrorsToOutcome(runID string, rowErrors []RowError) model.BatchOutcome {
	results := make([]model.RowResult, 0, len(rowErrors))
	for _, re := range rowErrors {
		results = append(results, model.RowResult{
			RowIndex:  re.RowIndex,
			Status:    model.RowStatusError,
			ErrorKind: classifyKind(re.Err),
			Retryable: errs.Retryable(re.Err),
			Message:   re.Err.Error(),
		})
	}
	return model.BatchOutcome{
		RunID:         runID,
		ChunkIndex:    -1,
		Processed:     len(results),
		Failed:        len(results),
		PerRowResults: results,
	}
}
