package models

import "fmt"

// Column describes one expected column in a contract.
type Column struct {
	Name          string   `yaml:"name" json:"name" validate:"required"`
	PhysicalType  string   `yaml:"physical_type" json:"physical_type" validate:"required"`
	Nullable      bool     `yaml:"nullable" json:"nullable"`
	IsPrimaryKey  bool     `yaml:"is_primary_key" json:"is_primary_key"`
	Required      bool     `yaml:"required" json:"required"`
	MinValue      *float64 `yaml:"min_value,omitempty" json:"min_value,omitempty"`
	MaxValue      *float64 `yaml:"max_value,omitempty" json:"max_value,omitempty"`
	AllowedValues []string `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty"`
	Pattern       string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Unique        bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

// AnomalyThresholds overrides the global z-score and quality-score defaults.
type AnomalyThresholds struct {
	ZWarn             float64 `yaml:"z_warn" json:"z_warn"`
	ZCrit             float64 `yaml:"z_crit" json:"z_crit"`
	QualityScoreWarn  float64 `yaml:"quality_score_warn" json:"quality_score_warn"`
	QualityScoreBlock float64 `yaml:"quality_score_block" json:"quality_score_block"`
}

// DefaultAnomalyThresholds are the global defaults applied when a
// contract leaves anomaly_thresholds unset.
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		ZWarn:             2.5,
		ZCrit:             3.0,
		QualityScoreWarn:  80,
		QualityScoreBlock: 50,
	}
}

// CustomCheck is a named predicate evaluated against the loaded table by
// the internal/customcheck expression evaluator.
type CustomCheck struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	Predicate    string `yaml:"sql_condition" json:"sql_condition" validate:"required"`
	SeverityName string `yaml:"severity" json:"severity"`
}

// Severity parses SeverityName, defaulting to WARNING on an unrecognized value.
func (c CustomCheck) Severity() Severity {
	if c.SeverityName == "CRITICAL" {
		return SeverityCritical
	}
	return SeverityWarning
}

// Freshness is the per-contract staleness rule.
type Freshness struct {
	// Threshold is a duration string of the form "<int>h", e.g. "24h".
	Threshold string `yaml:"threshold" json:"threshold"`
}

// Quality groups the row-count, anomaly, and custom-check rules of a contract.
type Quality struct {
	MinRows           *int64            `yaml:"min_rows,omitempty" json:"min_rows,omitempty"`
	MaxRows           *int64            `yaml:"max_rows,omitempty" json:"max_rows,omitempty"`
	AnomalyThresholds AnomalyThresholds `yaml:"anomaly_thresholds" json:"anomaly_thresholds"`
	CustomChecks      []CustomCheck     `yaml:"custom_checks,omitempty" json:"custom_checks,omitempty"`
	Freshness         Freshness         `yaml:"freshness" json:"freshness"`
}

// ForeignKey declares a referential-integrity rule checked by the
// Consistency Checker against a sibling table.
type ForeignKey struct {
	Columns          []string `yaml:"columns" json:"columns" validate:"required,min=1"`
	ReferenceTable   string   `yaml:"reference_table" json:"reference_table" validate:"required"`
	ReferenceColumns []string `yaml:"reference_columns" json:"reference_columns" validate:"required,min=1"`
}

// Info carries ownership and lifecycle metadata for a contract. Extra
// holds any passthrough keys (e.g. ODCS `dataContractSpecification`,
// `id`) that the core does not interpret but must round-trip.
type Info struct {
	Version      int            `yaml:"version" json:"version"`
	Owner        string         `yaml:"owner" json:"owner"`
	Domain       string         `yaml:"domain" json:"domain"`
	LifecycleStr string         `yaml:"lifecycle" json:"lifecycle"`
	Extra        map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Lifecycle parses Info.LifecycleStr, defaulting to active.
func (i Info) Lifecycle() Lifecycle {
	lc, ok := lifecycleFromName[i.LifecycleStr]
	if !ok {
		return LifecycleActive
	}
	return lc
}

// Contract is the declarative per-table quality document.
type Contract struct {
	TableName  string       `yaml:"table_name" json:"table_name" validate:"required"`
	Columns    []Column     `yaml:"columns" json:"columns" validate:"required,min=1,dive"`
	Quality    Quality      `yaml:"quality" json:"quality"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
	Info       Info         `yaml:"info" json:"info"`
	StrictMode bool         `yaml:"strict_mode" json:"strict_mode"`
}

// Validate enforces the contract's structural invariants:
// column names unique within a contract, and any primary-key column
// is non-nullable. Struct-tag validation (required fields, etc.) is
// performed separately by the caller via go-playground/validator.
func (c *Contract) Validate() error {
	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if seen[col.Name] {
			return fmt.Errorf("contract %s: duplicate column name %q", c.TableName, col.Name)
		}
		seen[col.Name] = true
		if col.IsPrimaryKey && col.Nullable {
			return fmt.Errorf("contract %s: primary key column %q must not be nullable", c.TableName, col.Name)
		}
	}
	return nil
}

// ColumnByName returns the column with the given name, if present.
func (c *Contract) ColumnByName(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// EffectiveThresholds returns the contract's anomaly thresholds,
// falling back to the global defaults for any zero-valued field.
func (c *Contract) EffectiveThresholds() AnomalyThresholds {
	t := c.Quality.AnomalyThresholds
	d := DefaultAnomalyThresholds()
	if t.ZWarn == 0 {
		t.ZWarn = d.ZWarn
	}
	if t.ZCrit == 0 {
		t.ZCrit = d.ZCrit
	}
	if t.QualityScoreWarn == 0 {
		t.QualityScoreWarn = d.QualityScoreWarn
	}
	if t.QualityScoreBlock == 0 {
		t.QualityScoreBlock = d.QualityScoreBlock
	}
	return t
}
