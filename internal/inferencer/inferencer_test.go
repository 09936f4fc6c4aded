package inferencer_test

import (
	"testing"

	"github.com/pgEdge/data-gatekeeper/internal/inferencer"
	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/profiler"
)

func tableFrom(columns []string, rows [][]any) *loader.Table {
	return &loader.Table{Columns: columns, Rows: rows, TotalRows: int64(len(rows))}
}

func TestInferMarksFullyUniqueNonNullColumnAsPrimaryKey(t *testing.T) {
	tbl := tableFrom([]string{"id", "amount"}, [][]any{
		{int64(1), 10.0},
		{int64(2), 20.0},
		{int64(3), 30.0},
	})
	profile := profiler.Profile(tbl)
	c := inferencer.Infer("orders", tbl, profile)

	id, ok := c.ColumnByName("id")
	if !ok {
		t.Fatal("expected an id column in the draft")
	}
	if !id.IsPrimaryKey {
		t.Error("a fully unique, non-null column should be inferred as primary key")
	}
	if id.Nullable {
		t.Error("a primary key column must not be nullable")
	}
}

func TestInferMarksNullableColumnAsNullable(t *testing.T) {
	tbl := tableFrom([]string{"id", "notes"}, [][]any{
		{int64(1), "hello"},
		{int64(2), nil},
	})
	profile := profiler.Profile(tbl)
	c := inferencer.Infer("orders", tbl, profile)

	notes, ok := c.ColumnByName("notes")
	if !ok {
		t.Fatal("expected a notes column in the draft")
	}
	if !notes.Nullable {
		t.Error("a column with an observed null should be inferred nullable")
	}
	if notes.IsPrimaryKey {
		t.Error("a nullable column must never be inferred as primary key")
	}
}

func TestInferDoesNotMarkLowUniquenessColumnUnique(t *testing.T) {
	tbl := tableFrom([]string{"id", "status"}, [][]any{
		{int64(1), "active"},
		{int64(2), "active"},
		{int64(3), "inactive"},
	})
	profile := profiler.Profile(tbl)
	c := inferencer.Infer("orders", tbl, profile)

	status, ok := c.ColumnByName("status")
	if !ok {
		t.Fatal("expected a status column in the draft")
	}
	if status.Unique {
		t.Error("a repeated-value column must not be inferred unique")
	}
}

func TestInferProducesVersionOneDraft(t *testing.T) {
	tbl := tableFrom([]string{"id"}, [][]any{{int64(1)}})
	profile := profiler.Profile(tbl)
	c := inferencer.Infer("ghost", tbl, profile)

	if c.TableName != "ghost" {
		t.Errorf("table name = %q, want ghost", c.TableName)
	}
	if c.Info.Version != 1 {
		t.Errorf("version = %d, want 1", c.Info.Version)
	}
	if c.Info.Domain != "inferred" {
		t.Errorf("domain = %q, want inferred", c.Info.Domain)
	}
	if c.StrictMode {
		t.Error("an inferred draft must not default to strict_mode")
	}
	if c.Quality.Freshness.Threshold != "24h" {
		t.Errorf("default freshness threshold = %q, want 24h", c.Quality.Freshness.Threshold)
	}
}

func TestInferNonPrimaryKeyUniqueColumnStaysNullable(t *testing.T) {
	// 2 of 3 distinct non-null values plus one null keeps unique_fraction
	// at 1.0 over non-null values but null_fraction > 0, so it should be
	// unique but not a primary key.
	tbl := tableFrom([]string{"id", "email"}, [][]any{
		{int64(1), "a@example.com"},
		{int64(2), "b@example.com"},
		{int64(3), nil},
	})
	profile := profiler.Profile(tbl)
	c := inferencer.Infer("users", tbl, profile)

	email, ok := c.ColumnByName("email")
	if !ok {
		t.Fatal("expected an email column in the draft")
	}
	if email.IsPrimaryKey {
		t.Error("a column with observed nulls must never be inferred as primary key")
	}
	if !email.Nullable {
		t.Error("a column with observed nulls must stay nullable")
	}
}
