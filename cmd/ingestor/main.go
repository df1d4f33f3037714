// Command ingestor runs the full C1-C6 ingestion state machine
// synchronously for one source_ref, in the style of the teacher's
// cmd/processor entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"statsingest/internal/config"
	"statsingest/internal/logging"
	"statsingest/internal/model"
	"statsingest/internal/pipeline"
	"statsingest/internal/repository/dynamo"
	"statsingest/internal/repository/mysql"
	"statsingest/internal/retry"
	"statsingest/internal/storage"
)

func main() {
	fmt.Println("STATISTICS INGESTOR")

	cfg := config.MustLoad()

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging_init_error:", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceRef := os.Getenv("SOURCE_REF")
	if sourceRef == "" && len(os.Args) > 1 {
		sourceRef = os.Args[1]
	}
	if sourceRef == "" {
		logger.Fatal("source_ref is required: set SOURCE_REF or pass it as the first argument")
	}

	// The database password travels by reference: DB_PASSWORD_REF names
	// the environment variable holding the actual secret, so the secret
	// itself never appears in the static config tree.
	password := ""
	if cfg.Database.PasswordRef != "" {
		password = os.Getenv(cfg.Database.PasswordRef)
	}

	gormLog := logging.NewGormLogger(logger)
	db, err := mysql.New(cfg.Database, password, gormLog)
	if err != nil {
		logger.Fatal("db_init_error", zap.Error(err))
	}
	if err := mysql.RunMigrations(db); err != nil {
		logger.Fatal("migration_error", zap.Error(err))
	}
	users := mysql.NewUserRepository(db)

	ddbClient, err := dynamo.NewClient(ctx, cfg.Storage.Region)
	if err != nil {
		logger.Fatal("dynamo_client_error", zap.Error(err))
	}
	audit := dynamo.NewAuditRepository(ddbClient, cfg.Audit.AuditTable, cfg.Audit.BatchWriteSize)
	runs := dynamo.NewRunRepository(ddbClient, cfg.Audit.MetadataTable)

	s3Client, err := storage.NewClient(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("s3_client_error", zap.Error(err))
	}
	store := storage.NewS3Store(s3Client, cfg.Storage.InputBucket, cfg.Storage.OutputBucket)

	policy := retry.Policy{
		MaxAttempts: cfg.Processing.MaxRowRetries + 1,
		BaseDelay:   cfg.Processing.RetryBaseDelay,
		Factor:      cfg.Processing.RetryBackoffFactor,
		MaxDelay:    30 * cfg.Processing.RetryBaseDelay,
	}

	dispatcher := pipeline.NewDispatcher(runs)
	validator := pipeline.NewValidator(store)
	worker := pipeline.NewWorker(users, audit, policy, logger)
	aggregator := pipeline.NewAggregator(store, runs, cfg.Processing.ToleratedFailurePct)
	orchestrator := pipeline.NewOrchestrator(dispatcher, validator, worker, aggregator, runs, audit, logger, pipeline.Config{
		BatchMax:       cfg.Processing.BatchMax,
		MaxConcurrency: cfg.Processing.MaxConcurrency,
		RunTimeout:     cfg.Processing.RunTimeout,
		WorkerTimeout:  cfg.Processing.WorkerTimeout,
	})

	logger.Info("ingestor_started", zap.String("source_ref", sourceRef))

	result, err := orchestrator.Run(ctx, sourceRef)
	if err != nil {
		logger.Error("ingestor_run_failed", zap.String("source_ref", sourceRef), zap.Error(err))
		os.Exit(1)
	}

	logger.Info("ingestor_finished",
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Totals.Processed),
		zap.Int("succeeded", result.Totals.Succeeded),
		zap.Int("failed", result.Totals.Failed),
	)

	run, err := runs.Get(ctx, result.RunID)
	if err != nil {
		logger.Warn("final_status_lookup_failed", zap.String("run_id", result.RunID), zap.Error(err))
		return
	}
	if run != nil && run.Status != model.RunStatusSucceeded {
		logger.Warn("run_terminated_unsuccessfully", zap.String("run_id", result.RunID), zap.String("status", string(run.Status)))
		os.Exit(1)
	}
}
