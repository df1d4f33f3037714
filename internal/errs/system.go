package errs

// System errors are infrastructure-adjacent failures of the pipeline
// itself. ProcessingTimeout and ConcurrencyLimit are retryable; the rest
// are not.

func NewProcessingTimeout(stage string) error {
	return newError("PROCESSING_TIMEOUT", "processing timed out: "+stage, TaxonSystem, true, nil, map[string]interface{}{
		"stage": stage,
	})
}

func NewConcurrencyLimit(limit int) error {
	return newError("CONCURRENCY_LIMIT", "worker concurrency limit reached", TaxonSystem, true, nil, map[string]interface{}{
		"limit": limit,
	})
}

func NewDataIntegrity(message string, metadata map[string]interface{}) error {
	return newError("DATA_INTEGRITY", message, TaxonSystem, false, nil, metadata)
}

func NewConfigurationError(message string) error {
	return newError("CONFIGURATION_ERROR", message, TaxonSystem, false, nil, nil)
}
