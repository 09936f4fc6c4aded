// Package loader implements the Tabular Loader: reading CSV,
// Parquet, JSON, and optional reference Postgres tables into a common
// in-memory representation for the downstream validators.
package loader

// Table is the in-memory representation every format reader produces.
// Values are kept as `any` (string/int64/float64/bool/nil) so downstream
// stages can coerce per-column without a loader-specific type switch.
type Table struct {
	Name       string
	Columns    []string
	Rows       [][]any
	TotalRows  int64 // rows present in the source before sampling
	Sampled    bool
	SampleRate float64
}

// RowCount returns the number of rows actually loaded (post-sampling).
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of name within Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every loaded value (post-sampling) for the named
// column, in row order. Returns nil if the column is absent.
func (t *Table) Column(name string) []any {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, nil)
		}
	}
	return out
}
