// Package validator implements the Schema Validator: structural
// schema diffing and per-column quality rule evaluation against a
// loaded Table.
package validator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/customcheck"
	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// typeCompatible reports whether an observed physical type satisfies
// an expected one, per the type compatibility matrix: integer
// ↔ {int, bigint, smallint}; float ↔ {float, double}; string ↔
// {varchar, text, object}; boolean ↔ boolean; timestamp ↔ {timestamp,
// string-parseable-as-timestamp} (the latter handled by
// inferPhysicalType classifying such a column as "timestamp" up
// front). Integer values also satisfy a float expectation, and any
// type satisfies "string".
func typeCompatible(expected, actual string) bool {
	ec, ac := canonicalType(expected), canonicalType(actual)
	if ec == ac {
		return true
	}
	if ec == "string" {
		return true
	}
	if ec == "float" && ac == "integer" {
		return true
	}
	return false
}

// canonicalType folds a contract's or the inferencer's physical-type
// spelling into the matrix's five buckets.
func canonicalType(t string) string {
	switch t {
	case "integer", "int", "bigint", "smallint":
		return "integer"
	case "float", "double":
		return "float"
	case "string", "varchar", "text", "object":
		return "string"
	case "boolean", "bool":
		return "boolean"
	case "timestamp":
		return "timestamp"
	default:
		return t
	}
}

// timestampLayouts are the layouts inferPhysicalType tries in order
// when a string value fails to parse as a number or boolean.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func looksLikeTimestamp(s string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// inferPhysicalType guesses a column's physical type from its loaded
// values, skipping nils.
func inferPhysicalType(values []any) string {
	sawFloat, sawInt, sawBool, sawTimestamp, sawString := false, false, false, false, false
	for _, v := range values {
		switch t := v.(type) {
		case nil:
			continue
		case bool:
			sawBool = true
		case int, int64:
			sawInt = true
		case float64:
			sawFloat = true
		case string:
			if _, err := strconv.ParseInt(t, 10, 64); err == nil {
				sawInt = true
				continue
			}
			if _, err := strconv.ParseFloat(t, 64); err == nil {
				sawFloat = true
				continue
			}
			if t == "true" || t == "false" {
				sawBool = true
				continue
			}
			if looksLikeTimestamp(t) {
				sawTimestamp = true
				continue
			}
			sawString = true
		default:
			sawString = true
		}
	}
	switch {
	case sawString:
		return "string"
	case sawBool:
		return "boolean"
	case sawTimestamp:
		return "timestamp"
	case sawFloat:
		return "float"
	case sawInt:
		return "integer"
	default:
		return "string"
	}
}

// DiffSchema compares a contract's expected columns against a loaded
// table's actual columns. Cancelling ctx aborts the scan between
// columns.
func DiffSchema(ctx context.Context, c *models.Contract, t *loader.Table) (models.SchemaDiff, error) {
	var diff models.SchemaDiff

	expected := make(map[string]models.Column, len(c.Columns))
	for _, col := range c.Columns {
		expected[col.Name] = col
	}
	actual := make(map[string]bool, len(t.Columns))
	for _, name := range t.Columns {
		actual[name] = true
	}

	for name := range expected {
		if !actual[name] {
			diff.MissingColumns = append(diff.MissingColumns, name)
		}
	}
	for _, name := range t.Columns {
		if err := ctx.Err(); err != nil {
			return diff, err
		}
		col, ok := expected[name]
		if !ok {
			diff.UnexpectedColumns = append(diff.UnexpectedColumns, name)
			diff.SuggestedColumns = append(diff.SuggestedColumns, models.ColumnSpec{
				Name:         name,
				PhysicalType: inferPhysicalType(t.Column(name)),
				Nullable:     true,
			})
			continue
		}
		actualType := inferPhysicalType(t.Column(name))
		if !typeCompatible(col.PhysicalType, actualType) {
			diff.TypeMismatches = append(diff.TypeMismatches, models.TypeMismatch{
				Column:       name,
				ExpectedType: col.PhysicalType,
				ActualType:   actualType,
			})
		}
	}
	return diff, nil
}

// ValidateQuality evaluates per-column rules (nullable/unique/min/max/
// pattern/allowed_values) and contract-level custom checks against a
// loaded table. Cancelling ctx aborts evaluation between columns and
// between custom-check row batches.
func ValidateQuality(ctx context.Context, c *models.Contract, t *loader.Table, now time.Time) ([]models.Violation, error) {
	var violations []models.Violation

	for _, col := range c.Columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := t.ColumnIndex(col.Name)
		if idx < 0 {
			continue // already reported as a missing column by DiffSchema
		}
		values := t.Column(col.Name)
		violations = append(violations, validateColumn(col, values)...)
	}

	if c.Quality.MinRows != nil && t.TotalRows < *c.Quality.MinRows {
		violations = append(violations, models.Violation{
			Tag:     models.TagQualityBlock,
			Severity: models.SeverityCritical,
			Stage:   "validate_schema",
			Message: fmt.Sprintf("row count %d is below min_rows %d", t.TotalRows, *c.Quality.MinRows),
		})
	}
	if c.Quality.MaxRows != nil && t.TotalRows > *c.Quality.MaxRows {
		violations = append(violations, models.Violation{
			Tag:     models.TagQualityBlock,
			Severity: models.SeverityWarning,
			Stage:   "validate_schema",
			Message: fmt.Sprintf("row count %d exceeds max_rows %d", t.TotalRows, *c.Quality.MaxRows),
		})
	}

	for _, check := range c.Quality.CustomChecks {
		predicate, err := customcheck.Compile(check.Predicate)
		if err != nil {
			return nil, fmt.Errorf("contract %s: custom check %q: %w", c.TableName, check.Name, err)
		}
		for rowIdx, row := range t.Rows {
			if rowIdx%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			rowMap := make(map[string]any, len(t.Columns))
			for i, colName := range t.Columns {
				if i < len(row) {
					rowMap[colName] = row[i]
				}
			}
			ok, err := predicate.Eval(rowMap, now)
			if err != nil {
				violations = append(violations, models.Violation{
					Tag:        models.TagQualityBlock,
					Severity:   check.Severity(),
					Stage:      "validate_schema",
					Message:    fmt.Sprintf("custom check %q errored on row %d: %v", check.Name, rowIdx, err),
					ObjectName: check.Name,
				})
				continue
			}
			if !ok {
				violations = append(violations, models.Violation{
					Tag:        models.TagQualityBlock,
					Severity:   check.Severity(),
					Stage:      "validate_schema",
					Message:    fmt.Sprintf("custom check %q failed on row %d", check.Name, rowIdx),
					ObjectName: check.Name,
				})
			}
		}
	}

	return violations, nil
}

// patternCache is shared across concurrent table runs.
var patternCache sync.Map // map[string]*regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func validateColumn(col models.Column, values []any) []models.Violation {
	var violations []models.Violation
	seen := make(map[string]int, len(values))

	for i, v := range values {
		if v == nil {
			if !col.Nullable {
				violations = append(violations, models.Violation{
					Tag:        models.TagQualityBlock,
					Severity:   models.SeverityCritical,
					Stage:      "validate_schema",
					Message:    fmt.Sprintf("column %q has a null value at row %d but is not nullable", col.Name, i),
					ObjectName: col.Name,
				})
			}
			continue
		}

		s := fmt.Sprintf("%v", v)
		seen[s]++

		if col.MinValue != nil || col.MaxValue != nil {
			f, err := toFloat(v)
			if err == nil {
				if col.MinValue != nil && f < *col.MinValue {
					violations = append(violations, models.Violation{
						Tag:        models.TagQualityBlock,
						Severity:   models.SeverityWarning,
						Stage:      "validate_schema",
						Message:    fmt.Sprintf("column %q value %v at row %d is below min_value %v", col.Name, v, i, *col.MinValue),
						ObjectName: col.Name,
					})
				}
				if col.MaxValue != nil && f > *col.MaxValue {
					violations = append(violations, models.Violation{
						Tag:        models.TagQualityBlock,
						Severity:   models.SeverityWarning,
						Stage:      "validate_schema",
						Message:    fmt.Sprintf("column %q value %v at row %d exceeds max_value %v", col.Name, v, i, *col.MaxValue),
						ObjectName: col.Name,
					})
				}
			}
		}

		if len(col.AllowedValues) > 0 && !contains(col.AllowedValues, s) {
			violations = append(violations, models.Violation{
				Tag:        models.TagQualityBlock,
				Severity:   models.SeverityWarning,
				Stage:      "validate_schema",
				Message:    fmt.Sprintf("column %q value %q at row %d is not in allowed_values", col.Name, s, i),
				ObjectName: col.Name,
			})
		}

		if col.Pattern != "" {
			re, err := compilePattern(col.Pattern)
			if err == nil && !re.MatchString(s) {
				violations = append(violations, models.Violation{
					Tag:        models.TagQualityBlock,
					Severity:   models.SeverityWarning,
					Stage:      "validate_schema",
					Message:    fmt.Sprintf("column %q value %q at row %d does not match pattern %q", col.Name, s, i, col.Pattern),
					ObjectName: col.Name,
				})
			}
		}
	}

	if col.Unique {
		for val, count := range seen {
			if count > 1 {
				violations = append(violations, models.Violation{
					Tag:        models.TagQualityBlock,
					Severity:   models.SeverityCritical,
					Stage:      "validate_schema",
					Message:    fmt.Sprintf("column %q value %q violates uniqueness (%d occurrences)", col.Name, val, count),
					ObjectName: col.Name,
				})
			}
		}
	}

	return violations
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}

// Decide applies the CRITICAL_STOP escalation rule: strict_mode
// promotes any violation (even WARNING) to a blocking outcome, and any
// CRITICAL violation always blocks regardless of strict_mode.
// It also assembles the concrete list of schema-level violations
// (missing/unexpected columns, type mismatches) alongside the passed-in
// quality violations, so callers have a single source of truth for both
// the terminal status and the verdict document's critical_errors/warnings.
func Decide(c *models.Contract, diff models.SchemaDiff, violations []models.Violation) (models.Status, string, []models.Violation) {
	var hasCritical bool
	var hasWarning bool
	all := append([]models.Violation(nil), violations...)
	for i := range all {
		if all[i].Severity == models.SeverityWarning && c.StrictMode {
			all[i].Severity = models.SeverityCritical
			all[i].Tag = models.TagSchemaCritical
		}
		if all[i].Severity == models.SeverityCritical {
			hasCritical = true
		} else {
			hasWarning = true
		}
	}
	for _, m := range diff.TypeMismatches {
		hasCritical = true
		all = append(all, models.Violation{
			Tag:        models.TagSchemaCritical,
			Severity:   models.SeverityCritical,
			Stage:      "validate_schema",
			Message:    fmt.Sprintf("column %q expected type %q, observed %q", m.Column, m.ExpectedType, m.ActualType),
			ObjectName: m.Column,
		})
	}
	for _, name := range diff.MissingColumns {
		col, _ := c.ColumnByName(name)
		sev := models.SeverityWarning
		tag := models.TagSchemaWarning
		if c.StrictMode || col.Required {
			sev = models.SeverityCritical
			tag = models.TagSchemaCritical
			hasCritical = true
		} else {
			hasWarning = true
		}
		all = append(all, models.Violation{
			Tag: tag, Severity: sev, Stage: "validate_schema",
			Message:    fmt.Sprintf("column %q is missing from the loaded data", name),
			ObjectName: name,
		})
	}
	for _, name := range diff.UnexpectedColumns {
		sev := models.SeverityWarning
		tag := models.TagSchemaWarning
		if c.StrictMode {
			sev = models.SeverityCritical
			tag = models.TagSchemaCritical
			hasCritical = true
		} else {
			hasWarning = true
		}
		all = append(all, models.Violation{
			Tag: tag, Severity: sev, Stage: "validate_schema",
			Message:    fmt.Sprintf("column %q is not declared in the contract", name),
			ObjectName: name,
		})
	}

	switch {
	case hasCritical:
		return models.StatusFail, "one or more critical schema or quality violations", all
	case hasWarning:
		return models.StatusPassWithWarnings, "non-blocking quality warnings were found", all
	default:
		return models.StatusPass, "no schema or quality violations", all
	}
}
