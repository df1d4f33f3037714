package errs

// Infrastructure errors wrap failures of the external collaborators
// (relational store, key-value store, object storage, other AWS
// services). All are retryable; the worker retries them in-process
// before they escape to the orchestration layer.

func NewDatabaseConnectionError(cause error) error {
	return newError("DATABASE_CONNECTION_ERROR", "relational store call failed", TaxonInfrastructure, true, cause, nil)
}

func NewStorageAccessError(cause error, key string) error {
	return newError("STORAGE_ACCESS_ERROR", "object storage call failed", TaxonInfrastructure, true, cause, map[string]interface{}{
		"key": key,
	})
}

func NewFileNotFound(key string) error {
	return newError("FILE_NOT_FOUND", "object not found in storage: "+key, TaxonInfrastructure, true, nil, map[string]interface{}{
		"key": key,
	})
}

func NewKeyValueAccessError(cause error, table string) error {
	return newError("KEY_VALUE_ACCESS_ERROR", "key-value store call failed", TaxonInfrastructure, true, cause, map[string]interface{}{
		"table": table,
	})
}

func NewAwsServiceError(cause error, service string) error {
	return newError("AWS_SERVICE_ERROR", "AWS service call failed", TaxonInfrastructure, true, cause, map[string]interface{}{
		"service": service,
	})
}

func NewExternalApiError(cause error) error {
	return newError("EXTERNAL_API_ERROR", "external API call failed", TaxonInfrastructure, true, cause, nil)
}
