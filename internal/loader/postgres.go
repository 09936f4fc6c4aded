package loader

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/data-gatekeeper/internal/connection"
)

// LoadFromPostgres reads every row of a reference table over a
// read-only connection, for use by the Consistency Checker when
// a foreign key's reference_table lives in a database rather than a
// file.
func LoadFromPostgres(ctx context.Context, cfg connection.Config, table string) (*Table, error) {
	conn, err := connection.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, fmt.Sprintf("SELECT * FROM %s", pgx.Identifier{table}.Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("query reference table %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	t := &Table{Name: table, Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read reference row %s: %w", table, err)
		}
		t.Rows = append(t.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference table %s: %w", table, err)
	}
	t.TotalRows = int64(len(t.Rows))
	return t, nil
}
