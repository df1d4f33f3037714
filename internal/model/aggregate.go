package model

// Totals summarizes the counters across every batch of a run.
type Totals struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Rates holds the run's derived success/error ratios.
type Rates struct {
	SuccessRate float64 `json:"success_rate"`
	ErrorRate   float64 `json:"error_rate"`
}

// Throughput summarizes batch timing.
type Throughput struct {
	PerSecond   float64 `json:"throughput_per_second"`
	MinBatchMS  int64   `json:"min_batch_ms"`
	AvgBatchMS  float64 `json:"avg_batch_ms"`
	MaxBatchMS  int64   `json:"max_batch_ms"`
}

// ErrorCount pairs an error kind with its frequency, used for top-N breakdowns.
type ErrorCount struct {
	Kind       string `json:"kind"`
	Count      int    `json:"count"`
	Retryable  bool   `json:"retryable"`
}

// AggregatedResult is the run-scoped artifact written to object storage at
// run termination.
type AggregatedResult struct {
	RunID                string         `json:"run_id"`
	Totals               Totals         `json:"totals"`
	Rates                Rates          `json:"rates"`
	ErrorBreakdownByType []ErrorCount   `json:"error_breakdown_by_type"`
	TopErrors            []ErrorCount   `json:"top_errors"`
	Throughput           Throughput     `json:"throughput"`
	DurationSeconds      float64        `json:"duration_seconds"`
	Recommendations      []string       `json:"recommendations"`
}
