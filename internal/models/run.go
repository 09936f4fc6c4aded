package models

import "time"

// ColumnProfile holds the Statistical Profiler's output for one column.
type ColumnProfile struct {
	Name          string  `json:"name"`
	DType         string  `json:"dtype"`
	NullFraction  float64 `json:"null_fraction"`
	UniqueFraction float64 `json:"unique_fraction"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Mean          *float64 `json:"mean,omitempty"`
	Median        *float64 `json:"median,omitempty"`
	Std           *float64 `json:"std,omitempty"`
	Skewness      *float64 `json:"skewness,omitempty"`
	Kurtosis      *float64 `json:"kurtosis,omitempty"`
	OutlierMethod string   `json:"outlier_method,omitempty"`
	OutlierIndices []int   `json:"outlier_indices,omitempty"`
}

// Violation is a single schema or quality rule failure, carried in a
// RunRecord and surfaced in the verdict document's critical_errors/warnings.
type Violation struct {
	Tag        ErrorTag `json:"tag"`
	Severity   Severity `json:"severity"`
	Stage      string   `json:"stage"`
	Message    string   `json:"message"`
	ObjectName string   `json:"object_name,omitempty"`
}

// RunRecord is the durable record of one orchestrated execution,
// written to the Baseline Store at the end of a run.
type RunRecord struct {
	RunID        string                   `json:"run_id"`
	Timestamp    time.Time                `json:"timestamp"`
	TableName    string                   `json:"table_name"`
	FileHash     string                   `json:"file_hash"`
	RowCount     int64                    `json:"row_count"`
	Status       Status                   `json:"status"`
	QualityScore float64                  `json:"quality_score"`
	AnomalyCount int                      `json:"anomaly_count"`
	ZScoreMax    float64                  `json:"z_score_max"`
	DurationMs   int64                    `json:"duration_ms"`
	Reason       string                   `json:"reason"`
	Violations   []Violation              `json:"violations"`
	Profile      map[string]ColumnProfile `json:"profile"`
}
