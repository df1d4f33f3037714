// Command statusapi serves read-only run and user statistics queries over
// HTTP, a thin adapter with no pipeline logic of its own, mirroring the
// teacher's cmd/api entrypoint.
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"statsingest/internal/api"
	"statsingest/internal/config"
	"statsingest/internal/logging"
	"statsingest/internal/repository/dynamo"
	"statsingest/internal/repository/mysql"
	"statsingest/internal/service"
)

func main() {
	cfg := config.MustLoad()

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer closeLog()

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

	ddbClient, err := dynamo.NewClient(context.Background(), cfg.Storage.Region)
	if err != nil {
		logger.Fatal("dynamo_client_error", zap.Error(err))
	}
	runs := dynamo.NewRunRepository(ddbClient, cfg.Audit.MetadataTable)

	svc := service.NewRunService(runs, users)
	router := api.SetupRouter(svc)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("statusapi_starting", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("statusapi_server_error", zap.Error(err))
	}
}
