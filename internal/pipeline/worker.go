package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
	"statsingest/internal/retry"
)

// Worker is C4: it processes one batch of rows sequentially, applying the
// per-row algorithm of §4.4 (load -> monotonic compute -> transactional
// upsert -> audit append), generalizing the teacher's
// internal/processor/worker.go channel/waitgroup idiom from a flat
// CSV-to-MySQL loop into this multi-step, retrying contract.
type Worker struct {
	users  repository.UserRepository
	audit  repository.AuditRepository
	policy retry.Policy
	logger *zap.Logger
}

// NewWorker builds a Worker over the given repositories and retry policy.
func NewWorker(users repository.UserRepository, audit repository.AuditRepository, policy retry.Policy, logger *zap.Logger) *Worker {
	return &Worker{users: users, audit: audit, policy: policy, logger: logger}
}

// ProcessBatch implements the §4.4 contract: process_batch({run_id,
// chunk_index, items[]}) -> BatchOutcome. It always returns a
// per_row_results entry for every item, never fewer.
func (w *Worker) ProcessBatch(ctx context.Context, batch model.Batch) model.BatchOutcome {
	start := time.Now()

	outcome := model.BatchOutcome{
		BatchID:       fmt.Sprintf("%s-%d", batch.RunID, batch.ChunkIndex),
		RunID:         batch.RunID,
		ChunkIndex:    batch.ChunkIndex,
		PerRowResults: make([]model.RowResult, 0, len(batch.Items)),
	}

	var sequence int
	for _, row := range batch.Items {
		result := w.processRow(ctx, batch.RunID, row, &sequence)
		outcome.PerRowResults = append(outcome.PerRowResults, result)
		outcome.Processed++
		if result.Status == model.RowStatusSuccess {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
	}

	outcome.WallTimeMS = time.Since(start).Milliseconds()
	return outcome
}

// processRow runs the per-row algorithm of §4.4, steps 1-6. sequence
// disambiguates audit entries written within the same batch — the spec
// requires strictly increasing timestamps per batch, but two rows
// processed in the same wall-clock millisecond still need distinct sort
// keys.
func (w *Worker) processRow(ctx context.Context, runID string, row model.Row, sequence *int) model.RowResult {
	result := model.RowResult{RowIndex: row.Index, UserID: row.UserID}

	// Step 1: defense-in-depth re-validation.
	if !model.ValidUserID(row.UserID) || row.LoginCount < 0 || row.PostCount < 0 {
		err := errs.NewValidationError(fmt.Sprintf("row %d failed re-validation", row.Index), map[string]interface{}{"row_index": row.Index, "user_id": row.UserID})
		return w.fail(ctx, runID, row, sequence, result, err)
	}

	// Step 2: load the user.
	user, err := w.users.FindByUserID(ctx, row.UserID)
	if err != nil {
		return w.fail(ctx, runID, row, sequence, result, err)
	}
	if user == nil {
		return w.fail(ctx, runID, row, sequence, result, errs.NewUserNotFound(row.UserID))
	}

	// Step 3: monotonic guard, checked against what we just read so a
	// genuine decrease is reported as data, not masked as a race no-op
	// inside ApplyStatistics.
	if row.LoginCount < user.LoginCount || row.PostCount < user.PostCount {
		err := errs.NewInvalidStatistics(row.UserID, user.LoginCount, user.PostCount, row.LoginCount, row.PostCount)
		return w.fail(ctx, runID, row, sequence, result, err)
	}

	oldLogin, oldPost := user.LoginCount, user.PostCount

	// Step 4 + 6: transactional upsert, retried on transient store errors.
	var update repository.UserUpdate
	applyErr := retry.Do(ctx, w.policy, errs.Retryable, func(ctx context.Context) error {
		var err error
		update, _, err = w.users.ApplyStatistics(ctx, row.UserID, row.LoginCount, row.PostCount)
		return err
	})
	if applyErr != nil {
		return w.fail(ctx, runID, row, sequence, result, applyErr)
	}

	result.Status = model.RowStatusSuccess

	// Step 5: audit, keyed for idempotent replay.
	entry := model.AuditEntry{
		RunID:        runID,
		Timestamp:    time.Now().UTC(),
		Sequence:     w.nextSequence(sequence),
		EventType:    model.AuditEventUserUpdate,
		Level:        model.AuditLevelInfo,
		FunctionName: "Worker.processRow",
		Message:      fmt.Sprintf("user %s statistics updated", row.UserID),
		Metadata: map[string]interface{}{
			"user_id":   row.UserID,
			"old":       map[string]interface{}{"login_count": oldLogin, "post_count": oldPost},
			"new":       map[string]interface{}{"login_count": row.LoginCount, "post_count": row.PostCount},
			"row_index": row.Index,
			"noop":      update == repository.UserUpdateNoop,
		},
	}
	if err := w.audit.AppendIfAbsent(ctx, entry, row.Index); err != nil {
		w.logger.Warn("audit_append_failed", zap.String("run_id", runID), zap.Int("row_index", row.Index), zap.Error(err))
	}

	return result
}

// fail classifies err into the row result, appends an ERROR-level audit
// entry, and returns the result. It never returns an error of its own —
// per §9's "exceptions become result types" note, row handling can't
// throw across the batch boundary.
func (w *Worker) fail(ctx context.Context, runID string, row model.Row, sequence *int, result model.RowResult, err error) model.RowResult {
	result.Status = model.RowStatusError
	result.ErrorKind = classifyKind(err)
	result.Message = err.Error()
	result.Retryable = errs.Retryable(err)

	entry := model.AuditEntry{
		RunID:        runID,
		Timestamp:    time.Now().UTC(),
		Sequence:     w.nextSequence(sequence),
		EventType:    model.AuditEventUserUpdate,
		Level:        model.AuditLevelError,
		FunctionName: "Worker.processRow",
		Message:      fmt.Sprintf("row %d (%s) failed: %s", row.Index, row.UserID, err.Error()),
		Metadata: map[string]interface{}{
			"user_id":    row.UserID,
			"row_index":  row.Index,
			"error_kind": result.ErrorKind,
		},
	}
	if auditErr := w.audit.AppendIfAbsent(ctx, entry, row.Index); auditErr != nil {
		w.logger.Warn("audit_append_failed", zap.String("run_id", runID), zap.Int("row_index", row.Index), zap.Error(auditErr))
	}

	return result
}

func (w *Worker) nextSequence(sequence *int) int {
	s := *sequence
	*sequence++
	return s
}

// classifyKind extracts the error's Code() for the row result, falling
// back to the taxon name when err isn't one of this package's typed
// errors (defense against a future untyped error slipping through).
func classifyKind(err error) string {
	var c errs.Classified
	if errors.As(err, &c) {
		return c.Code()
	}
	return string(errs.Classify(err))
}
