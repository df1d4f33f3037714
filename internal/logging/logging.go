// Package logging builds the structured logger every component shares.
// It writes to both stdout (for container log collection) and a per-run
// log file, the same dual-output idiom the teacher's plain-log.Logger
// setup used, now backed by zap.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"statsingest/internal/config"
)

// New builds a zap.Logger writing to stdout and/or a timestamped file under
// cfg.Dir, at the configured level. The returned close func flushes and
// closes the file handle; callers should defer it.
func New(cfg config.LoggingConfig) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
	}

	filename := time.Now().Format("2006-01-02T15-04-05") + "-ingestor.log"
	path := filepath.Join(cfg.Dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open log file: %w", err)
	}

	level := parseLevel(cfg.Level)
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(file)}
	if cfg.Stdout {
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	logger := zap.New(core, zap.AddCaller())

	return logger, file.Close, nil
}

func parseLevel(raw string) zapcore.Level {
	switch raw {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
