// Package consistency implements the Consistency Checker:
// foreign-key orphan detection between a loaded table and its declared
// sibling/reference tables.
package consistency

import (
	"context"
	"fmt"

	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/models"
)

const maxSampleOrphans = 5

// Check evaluates one foreign key against the already-loaded reference
// table. The reference table is loaded by the caller — from a
// sibling file or a live Postgres source — since a given foreign key's
// reference_table may resolve to either. Cancelling ctx aborts the
// scan between row batches.
func Check(ctx context.Context, fk models.ForeignKey, t *loader.Table, ref *loader.Table) (models.ConsistencyResult, error) {
	result := models.ConsistencyResult{ForeignKey: fk}

	if len(fk.Columns) != len(fk.ReferenceColumns) {
		return result, fmt.Errorf("foreign key on %s: columns/reference_columns length mismatch", fk.ReferenceTable)
	}

	refKeys, err := buildKeySet(ref, fk.ReferenceColumns)
	if err != nil {
		return result, fmt.Errorf("build reference key set for %s: %w", fk.ReferenceTable, err)
	}

	idx := make([]int, len(fk.Columns))
	for i, col := range fk.Columns {
		idx[i] = t.ColumnIndex(col)
		if idx[i] < 0 {
			return result, fmt.Errorf("foreign key column %q not present in loaded table", col)
		}
	}

	var total, orphans int64
	for i, row := range t.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
		total++
		key, complete := compositeKey(row, idx)
		if !complete {
			continue // a null in any FK column is not an orphan check candidate
		}
		if !refKeys[key] {
			orphans++
			if len(result.SampleOrphanIDs) < maxSampleOrphans {
				result.SampleOrphanIDs = append(result.SampleOrphanIDs, key)
			}
		}
	}

	result.OrphanCount = orphans
	if total > 0 {
		result.OrphanPercent = 100 * float64(orphans) / float64(total)
	}
	return result, nil
}

// CheckSkipped returns a ConsistencyResult recording that a foreign
// key could not be checked (e.g. the reference table failed to load)
// rather than aborting the run.
func CheckSkipped(fk models.ForeignKey, reason string) models.ConsistencyResult {
	return models.ConsistencyResult{ForeignKey: fk, Skipped: true, SkipReason: reason}
}

func buildKeySet(t *loader.Table, columns []string) (map[string]bool, error) {
	idx := make([]int, len(columns))
	for i, col := range columns {
		idx[i] = t.ColumnIndex(col)
		if idx[i] < 0 {
			return nil, fmt.Errorf("reference column %q not present in reference table", col)
		}
	}
	keys := make(map[string]bool, len(t.Rows))
	for _, row := range t.Rows {
		key, complete := compositeKey(row, idx)
		if complete {
			keys[key] = true
		}
	}
	return keys, nil
}

func compositeKey(row []any, idx []int) (string, bool) {
	key := ""
	for n, i := range idx {
		if i >= len(row) || row[i] == nil {
			return "", false
		}
		if n > 0 {
			key += "\x1f"
		}
		key += fmt.Sprintf("%v", row[i])
	}
	return key, true
}
