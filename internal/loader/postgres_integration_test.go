//go:build integration

// Integration tests that run against a live PostgreSQL database.
//
// These tests require the mmready-test Docker container:
//
//	docker run -d --name mmready-test \
//	  -e POSTGRES_PASSWORD=postgres -e POSTGRES_DB=mmready \
//	  -p 5499:5432 \
//	  ghcr.io/pgedge/pgedge-postgres:18.1-spock5.0.4-standard-1
//
// Run with: go test -tags integration ./internal/loader/
package loader_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/data-gatekeeper/internal/connection"
	"github.com/pgEdge/data-gatekeeper/internal/loader"
)

func testConfig() connection.Config {
	return connection.Config{
		Host: "localhost", Port: 5499, DBName: "mmready",
		User: "postgres", Password: "postgres",
	}
}

// seedReferenceTable seeds through a plain writable pgx connection;
// connection.Connect can't be used here because it pins
// default_transaction_read_only=on.
func seedReferenceTable(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, "host=localhost port=5499 dbname=mmready user=postgres password=postgres")
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}
	defer conn.Close(ctx)

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS orders`,
		`CREATE TABLE orders (id integer PRIMARY KEY, amount numeric)`,
		`INSERT INTO orders (id, amount) VALUES (1, 10.0), (2, 20.0), (3, 30.0)`,
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed reference table: %v", err)
		}
	}
}

func TestLoadFromPostgresReadsEveryRow(t *testing.T) {
	seedReferenceTable(t)

	ctx := context.Background()
	tbl, err := loader.LoadFromPostgres(ctx, testConfig(), "orders")
	if err != nil {
		t.Fatalf("load from postgres: %v", err)
	}
	if tbl.TotalRows != 3 {
		t.Errorf("total rows = %d, want 3", tbl.TotalRows)
	}
	if idx := tbl.ColumnIndex("amount"); idx < 0 {
		t.Error("expected an amount column in the loaded reference table")
	}
}

func TestLoadFromPostgresMissingTableErrors(t *testing.T) {
	ctx := context.Background()
	conn, err := connection.Connect(ctx, testConfig())
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}
	conn.Close(ctx)

	if _, err := loader.LoadFromPostgres(ctx, testConfig(), "no_such_table_xyz"); err == nil {
		t.Error("expected an error loading a table that does not exist")
	}
}

func TestConnectionIsReadOnly(t *testing.T) {
	ctx := context.Background()
	conn, err := connection.Connect(ctx, testConfig())
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `CREATE TABLE should_fail_read_only (id integer)`)
	if err == nil {
		t.Error("expected a write to fail on a read-only connection")
	}
}
