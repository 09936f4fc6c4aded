package models

// FleetSummary is the read-only, all-tables rollup consumed by
// `inspect --all`. It is never written by the Orchestrator; it is
// computed on demand from the dataset registry and run history.
type FleetSummary struct {
	TableCount   int                 `json:"table_count"`
	PassCount    int                 `json:"pass_count"`
	WarnCount    int                 `json:"warn_count"`
	FailCount    int                 `json:"fail_count"`
	UnknownCount int                 `json:"unknown_count"`
	Tables       []FleetTableSummary `json:"tables"`
}

// FleetTableSummary is one row of a FleetSummary.
type FleetTableSummary struct {
	TableName   string        `json:"table_name"`
	LastStatus  Status        `json:"last_status"`
	Criticality Criticality   `json:"criticality"`
	Priority    TablePriority `json:"table_priority"`
}
