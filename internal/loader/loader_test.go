package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgEdge/data-gatekeeper/internal/loader"
)

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "id,name,amount\n1,alice,10.5\n2,bob,\n3,carol,30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	tbl, err := loader.Load(context.Background(), path, "transactions", loader.Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.Name != "transactions" {
		t.Errorf("name = %q, want transactions", tbl.Name)
	}
	if len(tbl.Columns) != 3 {
		t.Fatalf("columns = %v, want 3", tbl.Columns)
	}
	if tbl.RowCount() != 3 {
		t.Fatalf("row count = %d, want 3", tbl.RowCount())
	}
	amounts := tbl.Column("amount")
	if amounts[1] != nil {
		t.Errorf("expected empty csv field to load as nil, got %v", amounts[1])
	}
	if tbl.Sampled {
		t.Error("small file should not be sampled")
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	content := `[{"id":1,"name":"alice"},{"id":2,"name":"bob","extra":true}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	tbl, err := loader.Load(context.Background(), path, "users", loader.Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("row count = %d, want 2", tbl.RowCount())
	}
	if tbl.ColumnIndex("extra") < 0 {
		t.Error("expected union of keys across records to include 'extra'")
	}
}

func TestLoadSamplesLargeFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	var content string
	content = "id\n"
	for i := 0; i < 100; i++ {
		content += "x\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	tbl, err := loader.Load(context.Background(), path, "t", loader.Options{SizeThresholdBytes: 10, SampleRate: 0.1})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !tbl.Sampled {
		t.Fatal("expected table to be marked sampled")
	}
	if tbl.TotalRows != 100 {
		t.Errorf("total rows = %d, want 100", tbl.TotalRows)
	}
	if tbl.RowCount() >= 100 {
		t.Errorf("row count = %d, expected fewer than the full 100 after sampling", tbl.RowCount())
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loader.Load(context.Background(), path, "t", loader.Options{}); err == nil {
		t.Fatal("expected an error for an unsupported extension")
	}
}

func TestLoadCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("id\n1\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := loader.Load(ctx, path, "t", loader.Options{}); err == nil {
		t.Fatal("expected an error loading with a cancelled context")
	}
}
