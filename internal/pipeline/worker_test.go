package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
	"statsingest/internal/retry"
)

type fakeUserRepository struct {
	users          map[string]*model.User
	applyCalls     int
	failApplyUntil int
	applyErr       error
}

func newFakeUserRepository(users ...*model.User) *fakeUserRepository {
	m := make(map[string]*model.User)
	for _, u := range users {
		m[u.UserID] = u
	}
	return &fakeUserRepository{users: m}
}

func (f *fakeUserRepository) FindByUserID(_ context.Context, userID string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepository) ApplyStatistics(_ context.Context, userID string, newLogin, newPost int) (repository.UserUpdate, *model.User, error) {
	f.applyCalls++
	if f.applyErr != nil && f.applyCalls <= f.failApplyUntil {
		return repository.UserUpdateApplied, nil, f.applyErr
	}

	u, ok := f.users[userID]
	if !ok {
		return repository.UserUpdateApplied, nil, errors.New("user vanished")
	}
	if newLogin == u.LoginCount && newPost == u.PostCount {
		cp := *u
		return repository.UserUpdateNoop, &cp, nil
	}
	u.LoginCount = newLogin
	u.PostCount = newPost
	cp := *u
	return repository.UserUpdateApplied, &cp, nil
}

type fakeAuditRepository struct {
	entries []model.AuditEntry
	seen    map[string]bool
}

func newFakeAuditRepository() *fakeAuditRepository {
	return &fakeAuditRepository{seen: make(map[string]bool)}
}

func (f *fakeAuditRepository) AppendIfAbsent(_ context.Context, entry model.AuditEntry, rowIndex int) error {
	if rowIndex >= 0 {
		key := model.RowIndexKey(entry.RunID, rowIndex)
		if f.seen[key] {
			return nil
		}
		f.seen[key] = true
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepository) AppendBatch(_ context.Context, entries []model.AuditEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}
}

func testWorker(users *fakeUserRepository, audit *fakeAuditRepository) *Worker {
	return NewWorker(users, audit, fastPolicy(), zap.NewNop())
}

func TestProcessBatchHappyPath(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 1, PostCount: 2}})
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{
		{Index: 0, UserID: "U00001", LoginCount: 5, PostCount: 9},
	}}

	outcome := w.ProcessBatch(context.Background(), batch)

	if outcome.Succeeded != 1 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(outcome.PerRowResults) != 1 || outcome.PerRowResults[0].Status != model.RowStatusSuccess {
		t.Fatalf("PerRowResults = %+v", outcome.PerRowResults)
	}
	if users.users["U00001"].LoginCount != 5 || users.users["U00001"].PostCount != 9 {
		t.Errorf("user not updated: %+v", users.users["U00001"])
	}
	if len(audit.entries) != 1 || audit.entries[0].Level != model.AuditLevelInfo {
		t.Errorf("expected one INFO audit entry, got %+v", audit.entries)
	}
}

func TestProcessBatchUserNotFound(t *testing.T) {
	users := newFakeUserRepository()
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{
		{Index: 0, UserID: "U99999", LoginCount: 1, PostCount: 1},
	}}

	outcome := w.ProcessBatch(context.Background(), batch)

	if outcome.Failed != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.PerRowResults[0].ErrorKind != "USER_NOT_FOUND" {
		t.Errorf("ErrorKind = %q", outcome.PerRowResults[0].ErrorKind)
	}
	if outcome.PerRowResults[0].Retryable {
		t.Error("USER_NOT_FOUND must not be retryable")
	}
	if len(audit.entries) != 1 || audit.entries[0].Level != model.AuditLevelError {
		t.Errorf("expected one ERROR audit entry, got %+v", audit.entries)
	}
}

func TestProcessBatchMonotonicGuardViolation(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 10, PostCount: 10}})
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{
		{Index: 0, UserID: "U00001", LoginCount: 3, PostCount: 10},
	}}

	outcome := w.ProcessBatch(context.Background(), batch)

	if outcome.Failed != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.PerRowResults[0].ErrorKind != "INVALID_STATISTICS" {
		t.Errorf("ErrorKind = %q", outcome.PerRowResults[0].ErrorKind)
	}
	if users.users["U00001"].LoginCount != 10 {
		t.Error("monotonic guard violation must not write")
	}
	if users.applyCalls != 0 {
		t.Errorf("ApplyStatistics should not be called, got %d calls", users.applyCalls)
	}
}

func TestProcessBatchIdempotentReplayDoesNotDuplicateAudit(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 5, PostCount: 5}})
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	row := model.Row{Index: 0, UserID: "U00001", LoginCount: 5, PostCount: 5}
	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{row}}

	first := w.ProcessBatch(context.Background(), batch)
	second := w.ProcessBatch(context.Background(), batch)

	if first.PerRowResults[0].Status != model.RowStatusSuccess || second.PerRowResults[0].Status != model.RowStatusSuccess {
		t.Fatal("both replays should succeed")
	}
	if len(audit.entries) != 1 {
		t.Errorf("expected exactly one audit entry across replays, got %d", len(audit.entries))
	}
}

func TestProcessBatchRetriesTransientErrorThenSucceeds(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 0, PostCount: 0}})
	users.applyErr = errs.NewDatabaseConnectionError(errors.New("connection reset"))
	users.failApplyUntil = 2
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{
		{Index: 0, UserID: "U00001", LoginCount: 1, PostCount: 1},
	}}

	outcome := w.ProcessBatch(context.Background(), batch)

	if outcome.Succeeded != 1 {
		t.Fatalf("expected eventual success, outcome = %+v", outcome)
	}
	if users.applyCalls != 3 {
		t.Errorf("ApplyStatistics calls = %d, want 3 (2 failures + 1 success)", users.applyCalls)
	}
}

func TestProcessBatchRetryExhaustionClassifiesAsInfrastructure(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 0, PostCount: 0}})
	users.applyErr = errs.NewDatabaseConnectionError(errors.New("connection reset"))
	users.failApplyUntil = 99
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{
		{Index: 0, UserID: "U00001", LoginCount: 1, PostCount: 1},
	}}

	outcome := w.ProcessBatch(context.Background(), batch)

	if outcome.Failed != 1 {
		t.Fatalf("expected exhaustion to fail the row, outcome = %+v", outcome)
	}
	if outcome.PerRowResults[0].ErrorKind != "DATABASE_CONNECTION_ERROR" {
		t.Errorf("ErrorKind = %q", outcome.PerRowResults[0].ErrorKind)
	}
	if !outcome.PerRowResults[0].Retryable {
		t.Error("DATABASE_CONNECTION_ERROR should be marked retryable even after exhaustion")
	}
	if users.applyCalls != 3 {
		t.Errorf("ApplyStatistics calls = %d, want 3 (MaxAttempts)", users.applyCalls)
	}
}

func TestProcessBatchAlwaysReturnsOneResultPerItem(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 0, PostCount: 0}})
	audit := newFakeAuditRepository()
	w := testWorker(users, audit)

	batch := model.Batch{RunID: "run-1", ChunkIndex: 0, Items: []model.Row{
		{Index: 0, UserID: "U00001", LoginCount: 1, PostCount: 1},
		{Index: 1, UserID: "BADID", LoginCount: 1, PostCount: 1},
		{Index: 2, UserID: "U99999", LoginCount: 1, PostCount: 1},
	}}

	outcome := w.ProcessBatch(context.Background(), batch)

	if len(outcome.PerRowResults) != 3 {
		t.Fatalf("len(PerRowResults) = %d, want 3", len(outcome.PerRowResults))
	}
	if outcome.Processed != 3 {
		t.Errorf("Processed = %d, want 3", outcome.Processed)
	}
}
