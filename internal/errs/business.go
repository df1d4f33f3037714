package errs

// Business errors are data, not exceptions: the row that produced one is
// skipped and the error is collected into the batch outcome. They are
// never retried.

func NewValidationError(message string, metadata map[string]interface{}) error {
	return newError("VALIDATION_ERROR", message, TaxonBusiness, false, nil, metadata)
}

func NewUserNotFound(userID string) error {
	return newError("USER_NOT_FOUND", "user not found: "+userID, TaxonBusiness, false, nil, map[string]interface{}{
		"user_id": userID,
	})
}

func NewInvalidStatistics(userID string, currentLogin, currentPost, newLogin, newPost int) error {
	return newError("INVALID_STATISTICS", "new statistics would decrease an existing counter", TaxonBusiness, false, nil, map[string]interface{}{
		"user_id":       userID,
		"current_login": currentLogin,
		"current_post":  currentPost,
		"new_login":     newLogin,
		"new_post":      newPost,
	})
}

func NewCsvFormatError(message string, metadata map[string]interface{}) error {
	return newError("CSV_FORMAT_ERROR", message, TaxonBusiness, false, nil, metadata)
}

func NewBusinessRuleViolation(message string, metadata map[string]interface{}) error {
	return newError("BUSINESS_RULE_VIOLATION", message, TaxonBusiness, false, nil, metadata)
}

func NewThresholdExceeded(message string, metadata map[string]interface{}) error {
	return newError("THRESHOLD_EXCEEDED", message, TaxonBusiness, false, nil, metadata)
}

func NewDuplicateError(runID string) error {
	return newError("DUPLICATE_RUN", "a run with this id is already active", TaxonBusiness, false, nil, map[string]interface{}{
		"run_id": runID,
	})
}

func NewInvalidEncoding(detail string) error {
	return newError("INVALID_ENCODING", "file is not valid UTF-8: "+detail, TaxonBusiness, false, nil, nil)
}

func NewInvalidHeader(got []string, want []string) error {
	return newError("INVALID_HEADER", "CSV header does not match the expected column set", TaxonBusiness, false, nil, map[string]interface{}{
		"got":  got,
		"want": want,
	})
}

func NewFileTooLarge(sizeBytes, limitBytes int64) error {
	return newError("FILE_TOO_LARGE", "file exceeds the maximum ingest size", TaxonBusiness, false, nil, map[string]interface{}{
		"size_bytes":  sizeBytes,
		"limit_bytes": limitBytes,
	})
}

func NewRunNotFound(runID string) error {
	return newError("RUN_NOT_FOUND", "run not found: "+runID, TaxonBusiness, false, nil, map[string]interface{}{
		"run_id": runID,
	})
}
