package contract_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgEdge/data-gatekeeper/internal/contract"
)

const sampleContract = `
table_name: transactions
columns:
  - name: transaction_id
    physical_type: integer
    nullable: false
    is_primary_key: true
    required: true
  - name: amount
    physical_type: float
    nullable: false
quality:
  min_rows: 1
  anomaly_thresholds:
    z_warn: 2.5
    z_crit: 3.0
    quality_score_warn: 80
    quality_score_block: 50
  freshness:
    threshold: 24h
info:
  version: 1
  owner: data-eng
  domain: payments
  lifecycle: active
strict_mode: false
`

func writeContract(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write contract: %v", err)
	}
	return path
}

func TestLocateByFileName(t *testing.T) {
	dir := t.TempDir()
	writeContract(t, dir, "transactions.yaml", sampleContract)

	s := contract.New(dir, nil)
	path, c, found := s.Locate("transactions")
	if !found {
		t.Fatal("expected to locate contract")
	}
	if c.TableName != "transactions" {
		t.Errorf("table name = %q, want transactions", c.TableName)
	}
	if filepath.Base(path) != "transactions.yaml" {
		t.Errorf("path = %q", path)
	}
}

func TestLocateByScan(t *testing.T) {
	dir := t.TempDir()
	writeContract(t, dir, "payments_bundle.yaml", sampleContract)

	s := contract.New(dir, nil)
	_, c, found := s.Locate("transactions")
	if !found {
		t.Fatal("expected scan-based resolution to find contract")
	}
	if c.TableName != "transactions" {
		t.Errorf("table name = %q", c.TableName)
	}
}

func TestLocateMissing(t *testing.T) {
	dir := t.TempDir()
	s := contract.New(dir, nil)
	_, _, found := s.Locate("nonexistent")
	if found {
		t.Error("expected no contract to be found")
	}
}

func TestParseErrorDoesNotAbortDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeContract(t, dir, "broken.yaml", "not: [valid: yaml")
	writeContract(t, dir, "transactions.yaml", sampleContract)

	s := contract.New(dir, nil)
	entries, diags := s.List()
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 parsed contract, got %d", len(entries))
	}
}

func TestArchiveThenReplace(t *testing.T) {
	dir := t.TempDir()
	path := writeContract(t, dir, "transactions.yaml", sampleContract)

	s := contract.New(dir, nil)
	newContents := []byte(sampleContract + "\n# revised\n")
	if err := s.Replace(path, newContents); err != nil {
		t.Fatalf("replace: %v", err)
	}

	archDir := filepath.Join(dir, "archive")
	entries, err := os.ReadDir(archDir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 archived entry, got %d", len(entries))
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read replaced contract: %v", err)
	}
	if string(got) != string(newContents) {
		t.Error("active contract was not replaced with new contents")
	}
}

func TestPrimaryKeyMustBeNonNullable(t *testing.T) {
	dir := t.TempDir()
	bad := `
table_name: bad
columns:
  - name: id
    physical_type: integer
    nullable: true
    is_primary_key: true
info:
  version: 1
  owner: x
  domain: x
  lifecycle: active
`
	writeContract(t, dir, "bad.yaml", bad)
	s := contract.New(dir, nil)
	if _, err := s.Load(filepath.Join(dir, "bad.yaml")); err == nil {
		t.Error("expected validation error for nullable primary key")
	}
}
