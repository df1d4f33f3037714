// Package config provides centralized configuration for the ingestion
// pipeline. All settings load from environment variables with sensible
// defaults and are validated once at startup so misconfiguration fails
// fast rather than mid-run.
package config

import "time"

// Config holds every setting the pipeline needs.
type Config struct {
	Storage    StorageConfig
	Database   DatabaseConfig
	Audit      AuditConfig
	Processing ProcessingConfig
	Logging    LoggingConfig
}

// StorageConfig configures the S3 object-storage adapter.
type StorageConfig struct {
	InputBucket  string `env:"INPUT_BUCKET" required:"true"`
	OutputBucket string `env:"OUTPUT_BUCKET" required:"true"`
	Region       string `env:"AWS_REGION" default:"us-east-1"`
	Endpoint     string `env:"S3_ENDPOINT"`
	UsePathStyle bool   `env:"S3_USE_PATH_STYLE" default:"false"`
}

// DatabaseConfig configures the MySQL relational store.
type DatabaseConfig struct {
	Host        string `env:"DB_HOST" required:"true"`
	Port        string `env:"DB_PORT" default:"3306"`
	Name        string `env:"DB_NAME" required:"true"`
	User        string `env:"DB_USER" required:"true"`
	PasswordRef string `env:"DB_PASSWORD_REF"`
	MaxOpenConn int    `env:"DB_MAX_OPEN_CONN" default:"32"`
	MaxIdleConn int    `env:"DB_MAX_IDLE_CONN" default:"32"`
}

// AuditConfig configures the DynamoDB key-value store.
type AuditConfig struct {
	AuditTable     string        `env:"AUDIT_TABLE" required:"true"`
	MetadataTable  string        `env:"METADATA_TABLE" required:"true"`
	RetentionDays  int           `env:"AUDIT_RETENTION_DAYS" default:"90"`
	BatchWriteSize int           `env:"AUDIT_BATCH_WRITE_SIZE" default:"25"`
	RequestTimeout time.Duration `env:"AUDIT_REQUEST_TIMEOUT" default:"10s"`
}

// ProcessingConfig configures the pipeline's concurrency and thresholds.
type ProcessingConfig struct {
	BatchMax              int           `env:"BATCH_MAX" default:"25"`
	MaxConcurrency        int           `env:"MAX_CONCURRENCY" default:"5"`
	ToleratedFailurePct   float64       `env:"TOLERATED_FAILURE_PCT" default:"5"`
	RunTimeout            time.Duration `env:"RUN_TIMEOUT" default:"600s"`
	WorkerTimeout         time.Duration `env:"WORKER_TIMEOUT" default:"30s"`
	MaxRowRetries         int           `env:"MAX_ROW_RETRIES" default:"3"`
	RetryBaseDelay        time.Duration `env:"RETRY_BASE_DELAY" default:"2s"`
	RetryBackoffFactor    float64       `env:"RETRY_BACKOFF_FACTOR" default:"2"`
	MaxFileSizeBytes      int64         `env:"MAX_FILE_SIZE_BYTES" default:"104857600"`
	OrchestratorMaxRetries int          `env:"ORCHESTRATOR_MAX_RETRIES" default:"2"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"INFO"`
	Dir    string `env:"LOG_DIR" default:"./logs"`
	Stdout bool   `env:"LOG_STDOUT" default:"true"`
}
