package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"statsingest/internal/model"
)

func testOrchestrator(fetcher *fakeCSVFetcher, users *fakeUserRepository, audit *fakeAuditRepository, runs *fakeRunRepository, store *fakeResultStore, cfg Config) *Orchestrator {
	dispatcher := NewDispatcher(runs)
	validator := NewValidator(fetcher)
	worker := NewWorker(users, audit, fastPolicy(), zap.NewNop())
	aggregator := NewAggregator(store, runs, 5.0)
	return NewOrchestrator(dispatcher, validator, worker, aggregator, runs, audit, zap.NewNop(), cfg)
}

func TestOrchestratorRunEndToEndSuccess(t *testing.T) {
	fetcher := &fakeCSVFetcher{body: []byte("user_id,login_count,post_count\nU00001,5,9\nU00002,1,1\n")}
	users := newFakeUserRepository(
		&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 1, PostCount: 2}},
		&model.User{UserID: "U00002", Statistics: model.Statistics{LoginCount: 0, PostCount: 0}},
	)
	audit := newFakeAuditRepository()
	runs := newFakeRunRepository()
	store := &fakeResultStore{}

	o := testOrchestrator(fetcher, users, audit, runs, store, Config{BatchMax: 25, MaxConcurrency: 2})

	result, err := o.Run(context.Background(), "uploads/2026/users.csv")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Totals.Processed != 2 || result.Totals.Succeeded != 2 {
		t.Fatalf("Totals = %+v", result.Totals)
	}
}

func TestOrchestratorZeroDataRows(t *testing.T) {
	fetcher := &fakeCSVFetcher{body: []byte("user_id,login_count,post_count\n")}
	runs := newFakeRunRepository()
	store := &fakeResultStore{}

	o := testOrchestrator(fetcher, newFakeUserRepository(), newFakeAuditRepository(), runs, store, Config{})

	result, err := o.Run(context.Background(), "uploads/empty.csv")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Totals.Processed != 0 {
		t.Errorf("Totals = %+v, want zero", result.Totals)
	}
}

func TestOrchestratorExactlyBatchMaxRows(t *testing.T) {
	body := "user_id,login_count,post_count\n"
	users := newFakeUserRepository()
	for i := 0; i < 25; i++ {
		id := userIDFor(i)
		body += id + ",1,1\n"
		users.users[id] = &model.User{UserID: id}
	}
	fetcher := &fakeCSVFetcher{body: []byte(body)}
	runs := newFakeRunRepository()
	store := &fakeResultStore{}

	o := testOrchestrator(fetcher, users, newFakeAuditRepository(), runs, store, Config{BatchMax: 25, MaxConcurrency: 5})

	result, err := o.Run(context.Background(), "uploads/batch25.csv")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Totals.Processed != 25 {
		t.Fatalf("Totals.Processed = %d, want 25", result.Totals.Processed)
	}
}

func TestOrchestratorBatchMaxPlusOneRowsSpansTwoBatches(t *testing.T) {
	body := "user_id,login_count,post_count\n"
	users := newFakeUserRepository()
	for i := 0; i < 26; i++ {
		id := userIDFor(i)
		body += id + ",1,1\n"
		users.users[id] = &model.User{UserID: id}
	}
	fetcher := &fakeCSVFetcher{body: []byte(body)}
	runs := newFakeRunRepository()
	store := &fakeResultStore{}

	o := testOrchestrator(fetcher, users, newFakeAuditRepository(), runs, store, Config{BatchMax: 25, MaxConcurrency: 5})

	result, err := o.Run(context.Background(), "uploads/batch26.csv")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Totals.Processed != 26 {
		t.Fatalf("Totals.Processed = %d, want 26", result.Totals.Processed)
	}
}

func TestOrchestratorInvalidHeaderShortCircuitsToFailed(t *testing.T) {
	fetcher := &fakeCSVFetcher{body: []byte("a,b,c\nU00001,1,1\n")}
	runs := newFakeRunRepository()
	store := &fakeResultStore{}

	o := testOrchestrator(fetcher, newFakeUserRepository(), newFakeAuditRepository(), runs, store, Config{})

	_, err := o.Run(context.Background(), "uploads/badheader.csv")
	if err == nil {
		t.Fatal("expected an error for invalid header")
	}
	for _, r := range runs.started {
		if r.Status != model.RunStatusFailed {
			t.Errorf("run status = %v, want FAILED", r.Status)
		}
	}
	if store.puts != 0 {
		t.Errorf("expected no result artifact written, got %d PutGzip calls", store.puts)
	}
}

func TestOrchestratorRejectsDuplicateRun(t *testing.T) {
	fetcher := &fakeCSVFetcher{body: []byte("user_id,login_count,post_count\nU00001,1,1\n")}
	runs := newFakeRunRepository()
	store := &fakeResultStore{}
	users := newFakeUserRepository(&model.User{UserID: "U00001"})

	dispatcher := NewDispatcher(runs)
	now := time.Now()
	if _, err := dispatcher.Start(context.Background(), "uploads/dup.csv", now); err != nil {
		t.Fatalf("seed Start() error = %v", err)
	}

	o := testOrchestrator(fetcher, users, newFakeAuditRepository(), runs, store, Config{})
	_, err := o.Run(context.Background(), "uploads/dup.csv")
	if err == nil {
		t.Fatal("expected duplicate-run error")
	}
}

func TestOrchestratorWorkerRestartReplayIsIdempotent(t *testing.T) {
	users := newFakeUserRepository(&model.User{UserID: "U00001", Statistics: model.Statistics{LoginCount: 5, PostCount: 5}})
	audit := newFakeAuditRepository()

	worker := NewWorker(users, audit, fastPolicy(), zap.NewNop())
	batch := model.Batch{RunID: "replay-run", ChunkIndex: 0, Items: []model.Row{{Index: 0, UserID: "U00001", LoginCount: 5, PostCount: 5}}}

	first := worker.ProcessBatch(context.Background(), batch)
	second := worker.ProcessBatch(context.Background(), batch)

	if first.Succeeded != 1 || second.Succeeded != 1 {
		t.Fatalf("expected both replays to report success, first=%+v second=%+v", first, second)
	}
	if len(audit.entries) != 1 {
		t.Errorf("expected exactly one audit entry across the restart replay, got %d", len(audit.entries))
	}
}

func userIDFor(i int) string {
	return fmt.Sprintf("U%05d", i)
}
