package models

import "time"

// MetricSample is one append-only observation written to the Baseline
// Store each run. metric_name examples: "row_count",
// "mean_<col>", "null_rate_<col>".
type MetricSample struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	TableName  string    `json:"table_name"`
	MetricName string    `json:"metric_name"`
	MetricValue float64  `json:"metric_value"`
	DayOfWeek  int       `json:"day_of_week"`
}

// LearnedThreshold is the current mean/std baseline for one
// (table_name, metric_name) pair, upserted on each refresh.
type LearnedThreshold struct {
	TableName    string       `json:"table_name"`
	MetricName   string       `json:"metric_name"`
	BaselineMean float64      `json:"baseline_mean"`
	BaselineStd  float64      `json:"baseline_std"`
	BaselineKind BaselineKind `json:"baseline_kind"`
	SampleCount  int          `json:"sample_count"`
	LastUpdated  time.Time    `json:"last_updated"`
}

// DatasetRegistryEntry is the one-row-per-table registry of last-known
// scan state, upserted after each run.
type DatasetRegistryEntry struct {
	TableName     string      `json:"table_name"`
	ContractPath  string      `json:"contract_path"`
	Lifecycle     Lifecycle   `json:"lifecycle"`
	Criticality   Criticality `json:"criticality"`
	LastScanned   time.Time   `json:"last_scanned"`
	LastStatus    Status      `json:"last_status"`
	LastFileMtime time.Time   `json:"last_file_mtime"`
	ScanCount     int64       `json:"scan_count"`
}
