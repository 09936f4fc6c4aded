package loader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ctxCheckRows is how many rows are read between cancellation checks.
const ctxCheckRows = 4096

// Options controls how a source is read into a Table.
type Options struct {
	// SizeThresholdBytes is the file size above which sampling kicks in.
	// Zero selects the default of 500MB.
	SizeThresholdBytes int64
	// SampleRate is the fraction of rows kept once sampling is active.
	// Zero selects the default of 0.10.
	SampleRate float64
}

func (o Options) withDefaults() Options {
	if o.SizeThresholdBytes <= 0 {
		o.SizeThresholdBytes = 500 * 1024 * 1024
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 0.10
	}
	return o
}

// Load reads path and returns its contents as a Table named table.
// Format is selected from the file extension: .csv, .parquet, .json.
// Cancelling ctx aborts the read between row batches.
func Load(ctx context.Context, path string, table string, opts Options) (*Table, error) {
	opts = opts.withDefaults()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err = loadCSV(ctx, path)
	case ".parquet":
		t, err = loadParquet(ctx, path)
	case ".json":
		t, err = loadJSON(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported table source extension: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	t.Name = table
	t.TotalRows = int64(len(t.Rows))

	if info.Size() > opts.SizeThresholdBytes {
		t.Rows = sample(t.Rows, opts.SampleRate)
		t.Sampled = true
		t.SampleRate = opts.SampleRate
	}
	return t, nil
}

// sample deterministically keeps roughly rate of rows, preserving row
// order, by keeping every Nth row where N = int(1/rate), truncated.
func sample(rows [][]any, rate float64) [][]any {
	if rate >= 1 {
		return rows
	}
	interval := int(1 / rate)
	if interval < 1 {
		interval = 1
	}
	out := make([][]any, 0, len(rows)/interval+1)
	for i, row := range rows {
		if i%interval == 0 {
			out = append(out, row)
		}
	}
	return out
}

func loadCSV(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header %s: %w", path, err)
	}

	t := &Table{Columns: header}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %s: %w", path, err)
		}
		if len(t.Rows)%ctxCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(record) && record[i] != "" {
				row[i] = record[i]
			} else {
				row[i] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func loadJSON(ctx context.Context, path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal json %s: %w", path, err)
	}

	columns := orderedColumns(records)
	t := &Table{Columns: columns}
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = rec[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// orderedColumns collects the union of keys across records, in
// first-seen order, since JSON object key order is not guaranteed
// stable across records.
func orderedColumns(records []map[string]any) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}

// loadParquet reads a flat (non-nested) parquet file column-by-column
// using the row-group reader, mapping each leaf column path to a
// Table column name.
func loadParquet(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file %s: %w", path, err)
	}

	paths := pf.Schema().Columns()
	columns := make([]string, len(paths))
	for i, p := range paths {
		columns[i] = strings.Join(p, ".")
	}

	t := &Table{Columns: columns}
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		buf := make([]parquet.Row, 128)
		for {
			if err := ctx.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			n, err := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				row := make([]any, len(columns))
				for _, v := range buf[i] {
					idx := v.Column()
					if idx >= 0 && idx < len(row) && !v.IsNull() {
						row[idx] = goValue(v)
					}
				}
				t.Rows = append(t.Rows, row)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read parquet rows %s: %w", path, err)
			}
		}
		rows.Close()
	}
	return t, nil
}

// goValue converts a parquet leaf value to the loader's generic cell
// representation: int64, float64, bool, or string.
func goValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return v.String()
	}
}
