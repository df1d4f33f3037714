// Package pipeline implements the core C1-C5 state machine: dispatch,
// validate, partition, parallel-process, aggregate. Grounded on the
// teacher's internal/processor package, generalized from a flat
// CSV-to-MySQL loop into the multi-stage pipeline this system requires.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
)

var nonRunIDChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)
var repeatedHyphen = regexp.MustCompile(`-{2,}`)

// maxRunIDBaseLen is the truncation length applied before the "-HHMMSS"
// suffix is appended, keeping the final id within the 80-char cap of §3.
const maxRunIDBaseLen = 70

// maxRunIDLen is the hard clamp on the derived run_id.
const maxRunIDLen = 80

// DeriveRunID implements §4.1's derivation rule: strip any path prefix and
// extension, replace non-id characters with '-', collapse repeats, trim
// leading/trailing hyphens, truncate to 70 chars, append "-HHMMSS", clamp
// to 80 chars. Pure and idempotent to run twice over the same (key, now).
func DeriveRunID(sourceKey string, now time.Time) string {
	base := sourceKey
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}

	base = nonRunIDChar.ReplaceAllString(base, "-")
	base = repeatedHyphen.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if len(base) > maxRunIDBaseLen {
		base = base[:maxRunIDBaseLen]
		base = strings.TrimRight(base, "-")
	}

	runID := base + "-" + now.UTC().Format("150405")
	if len(runID) > maxRunIDLen {
		runID = runID[:maxRunIDLen]
	}
	return runID
}

// Dispatcher is C1: it derives the run_id and rejects a duplicate
// concurrent start via the run repository's conditional write.
type Dispatcher struct {
	runs repository.RunRepository
}

// NewDispatcher builds a Dispatcher over the given run repository.
func NewDispatcher(runs repository.RunRepository) *Dispatcher {
	return &Dispatcher{runs: runs}
}

// StartResult is the outcome of Start: either a freshly accepted run or a
// rejected duplicate of an already-active one.
type StartResult struct {
	RunID    string
	Accepted bool
}

// Start implements the §4.1 contract: start(source_ref) -> {run_id,
// accepted|duplicate}.
func (d *Dispatcher) Start(ctx context.Context, sourceRef string, now time.Time) (StartResult, error) {
	if strings.TrimSpace(sourceRef) == "" {
		return StartResult{}, errs.NewConfigurationError("source_ref is required")
	}

	runID := DeriveRunID(sourceRef, now)

	started, err := d.runs.Start(ctx, model.Run{
		RunID:     runID,
		SourceRef: sourceRef,
		StartedAt: now,
		Status:    model.RunStatusRunning,
	})
	if err != nil {
		return StartResult{}, err
	}

	return StartResult{RunID: runID, Accepted: started}, nil
}
