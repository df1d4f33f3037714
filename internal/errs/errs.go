// Package errs implements the three-taxon error classification of the
// pipeline: business errors are data, not exceptions; system and
// infrastructure errors propagate and carry retry semantics.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Taxon is one of the three error categories the pipeline classifies
// failures into.
type Taxon string

const (
	TaxonBusiness       Taxon = "BUSINESS"
	TaxonSystem         Taxon = "SYSTEM"
	TaxonInfrastructure Taxon = "INFRASTRUCTURE"
	TaxonUnknown        Taxon = "UNKNOWN"
)

// Classified is implemented by every typed error in this package.
type Classified interface {
	error
	Code() string
	Taxon() Taxon
	Retryable() bool
}

// Detail is the user-visible shape every classified error carries:
// {code, message, correlation_id, timestamp, metadata}. Stack traces are
// never part of Detail — they stay in internal logs only.
type Detail struct {
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type baseError struct {
	detail  Detail
	taxon   Taxon
	retry   bool
	wrapped error
}

func (e *baseError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.detail.Code, e.detail.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.detail.Code, e.detail.Message)
}

func (e *baseError) Unwrap() error   { return e.wrapped }
func (e *baseError) Code() string    { return e.detail.Code }
func (e *baseError) Taxon() Taxon    { return e.taxon }
func (e *baseError) Retryable() bool { return e.retry }
func (e *baseError) Detail() Detail  { return e.detail }

func newError(code, message string, taxon Taxon, retryable bool, wrapped error, metadata map[string]interface{}) *baseError {
	return &baseError{
		detail: Detail{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC(),
			Metadata:  metadata,
		},
		taxon:   taxon,
		retry:   retryable,
		wrapped: wrapped,
	}
}

// Classify walks the error chain and returns the taxon of the first
// Classified error found, or TaxonUnknown if none is present.
func Classify(err error) Taxon {
	var c Classified
	if errors.As(err, &c) {
		return c.Taxon()
	}
	return TaxonUnknown
}

// Retryable reports whether err (or a wrapped Classified error within it)
// should be retried by the orchestration layer.
func Retryable(err error) bool {
	var c Classified
	if errors.As(err, &c) {
		return c.Retryable()
	}
	return false
}

// WithCorrelationID attaches a correlation id to any Classified error built
// by this package, returning a new error value.
func WithCorrelationID(err error, correlationID string) error {
	var be *baseError
	if errors.As(err, &be) {
		cp := *be
		cp.detail.CorrelationID = correlationID
		return &cp
	}
	return err
}
