// Package repository defines the storage-agnostic contracts the pipeline
// depends on. Concrete implementations live in the mysql and dynamo
// subpackages; the pipeline only ever sees these interfaces, following the
// teacher's interface-first repository design.
package repository

import (
	"context"

	"statsingest/internal/model"
)

// UserUpdate is the result of attempting a monotonic statistics update.
type UserUpdate int

const (
	// UserUpdateApplied means the row's new totals were written.
	UserUpdateApplied UserUpdate = iota
	// UserUpdateNoop means no write was made: either the new totals
	// equalled the current ones (idempotent replay), or the guarded write
	// matched no row because the user had already moved past them.
	UserUpdateNoop
)

// UserRepository owns the relational store's users table.
type UserRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.User, error)

	// ApplyStatistics performs the §4.4 monotonic update inside a single
	// transaction: it only writes when newLogin/newPost are each >= the
	// user's current counters, setting last_login_at/last_post_at to now
	// only for counters that increased. It returns UserUpdateNoop (and
	// makes no write) when the new totals exactly match the current ones.
	ApplyStatistics(ctx context.Context, userID string, newLogin, newPost int) (UserUpdate, *model.User, error)
}

// AuditRepository owns the append-only audit log.
type AuditRepository interface {
	// AppendIfAbsent writes entry unless one already exists for the same
	// (run_id, row_index) natural key, per the idempotent-replay
	// requirement in §4.4. rowIndex < 0 means the entry has no natural
	// key (e.g. a run-level marker) and is always written.
	AppendIfAbsent(ctx context.Context, entry model.AuditEntry, rowIndex int) error

	// AppendBatch writes a run-level or batch-level marker entry
	// unconditionally, chunked at 25 items per DynamoDB BatchWriteItem
	// limits.
	AppendBatch(ctx context.Context, entries []model.AuditEntry) error
}

// RunRepository owns the run_metadata KV row: start/dedup and terminal
// status transitions.
type RunRepository interface {
	// Start attempts to create a RUNNING run_metadata row for runID. It
	// returns (true, nil) when this call created the row, and (false,
	// nil) when an active run with the same id already exists.
	Start(ctx context.Context, run model.Run) (started bool, err error)

	Get(ctx context.Context, runID string) (*model.Run, error)

	// UpdateProgress advances the run's counters without touching status.
	UpdateProgress(ctx context.Context, runID string, totalRows, successCount, errorCount int) error

	// Complete performs the forward-only terminal status transition
	// (RUNNING -> status) along with final counters and output ref.
	Complete(ctx context.Context, runID string, status model.RunStatus, successCount, errorCount int, outputRef string) error
}
