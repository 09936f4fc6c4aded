package validator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/models"
	"github.com/pgEdge/data-gatekeeper/internal/validator"
)

func sampleContract() *models.Contract {
	return &models.Contract{
		TableName: "transactions",
		Columns: []models.Column{
			{Name: "id", PhysicalType: "integer", Nullable: false, IsPrimaryKey: true, Unique: true},
			{Name: "amount", PhysicalType: "float", Nullable: false},
		},
	}
}

func TestDiffSchemaMissingAndUnexpected(t *testing.T) {
	c := sampleContract()
	tbl := &loader.Table{
		Columns: []string{"id", "extra"},
		Rows:    [][]any{{"1", "x"}},
	}
	diff, err := validator.DiffSchema(context.Background(), c, tbl)
	if err != nil {
		t.Fatalf("diff schema: %v", err)
	}
	if len(diff.MissingColumns) != 1 || diff.MissingColumns[0] != "amount" {
		t.Errorf("missing columns = %v, want [amount]", diff.MissingColumns)
	}
	if len(diff.UnexpectedColumns) != 1 || diff.UnexpectedColumns[0] != "extra" {
		t.Errorf("unexpected columns = %v, want [extra]", diff.UnexpectedColumns)
	}
}

func TestDiffSchemaAcceptsTypeAliasesAndTimestamps(t *testing.T) {
	c := &models.Contract{
		TableName: "events",
		Columns: []models.Column{
			{Name: "id", PhysicalType: "bigint"},
			{Name: "amount", PhysicalType: "double"},
			{Name: "label", PhysicalType: "varchar"},
			{Name: "created_at", PhysicalType: "timestamp"},
		},
	}
	tbl := &loader.Table{
		Columns: []string{"id", "amount", "label", "created_at"},
		Rows: [][]any{
			{"1", "10.5", "ok", "2026-01-15T10:30:00Z"},
			{"2", "20.5", "ok", "2026-01-16T10:30:00Z"},
		},
	}
	diff, err := validator.DiffSchema(context.Background(), c, tbl)
	if err != nil {
		t.Fatalf("diff schema: %v", err)
	}
	if len(diff.TypeMismatches) != 0 {
		t.Errorf("type mismatches = %+v, want none: aliased and timestamp types should be accepted", diff.TypeMismatches)
	}
}

func TestDiffSchemaTimestampColumnRejectsNonTimestampString(t *testing.T) {
	c := &models.Contract{
		TableName: "events",
		Columns:   []models.Column{{Name: "created_at", PhysicalType: "timestamp"}},
	}
	tbl := &loader.Table{
		Columns: []string{"created_at"},
		Rows:    [][]any{{"not-a-timestamp"}},
	}
	diff, err := validator.DiffSchema(context.Background(), c, tbl)
	if err != nil {
		t.Fatalf("diff schema: %v", err)
	}
	if len(diff.TypeMismatches) != 1 {
		t.Errorf("type mismatches = %+v, want one for a non-timestamp-parseable string", diff.TypeMismatches)
	}
}

func TestDiffSchemaTypeMismatch(t *testing.T) {
	c := sampleContract()
	tbl := &loader.Table{
		Columns: []string{"id", "amount"},
		Rows:    [][]any{{"1", "not-a-number"}},
	}
	diff, err := validator.DiffSchema(context.Background(), c, tbl)
	if err != nil {
		t.Fatalf("diff schema: %v", err)
	}
	if len(diff.TypeMismatches) != 1 {
		t.Fatalf("expected a type mismatch, got %v", diff.TypeMismatches)
	}
	if diff.TypeMismatches[0].Column != "amount" {
		t.Errorf("mismatch column = %q, want amount", diff.TypeMismatches[0].Column)
	}
}

func TestValidateQualityNullableAndUnique(t *testing.T) {
	c := sampleContract()
	tbl := &loader.Table{
		Columns:   []string{"id", "amount"},
		Rows:      [][]any{{"1", "10"}, {"1", "20"}, {nil, "30"}},
		TotalRows: 3,
	}
	violations, err := validator.ValidateQuality(context.Background(), c, tbl, time.Now())
	if err != nil {
		t.Fatalf("validate quality: %v", err)
	}
	var sawDuplicate, sawNull bool
	for _, v := range violations {
		if v.ObjectName == "id" && v.Severity == models.SeverityCritical {
			sawDuplicate = sawDuplicate || strings.Contains(v.Message, "uniqueness")
			sawNull = sawNull || strings.Contains(v.Message, "null value")
		}
	}
	if !sawDuplicate {
		t.Errorf("expected a uniqueness violation, got %+v", violations)
	}
	if !sawNull {
		t.Errorf("expected a non-nullable violation, got %+v", violations)
	}
}

func TestValidateQualityCustomCheck(t *testing.T) {
	c := sampleContract()
	c.Quality.CustomChecks = []models.CustomCheck{
		{Name: "positive_amount", Predicate: "amount > 0", SeverityName: "CRITICAL"},
	}
	tbl := &loader.Table{
		Columns: []string{"id", "amount"},
		Rows:    [][]any{{"1", "-5"}},
	}
	violations, err := validator.ValidateQuality(context.Background(), c, tbl, time.Now())
	if err != nil {
		t.Fatalf("validate quality: %v", err)
	}
	found := false
	for _, v := range violations {
		if v.ObjectName == "positive_amount" {
			found = true
			if v.Severity != models.SeverityCritical {
				t.Errorf("severity = %v, want CRITICAL", v.Severity)
			}
		}
	}
	if !found {
		t.Error("expected the custom check violation to be reported")
	}
}

func TestDecideEscalation(t *testing.T) {
	c := sampleContract()
	critical := []models.Violation{{Severity: models.SeverityCritical}}
	status, _, _ := validator.Decide(c, models.SchemaDiff{}, critical)
	if status != models.StatusFail {
		t.Errorf("status = %v, want FAIL for a critical violation", status)
	}

	warning := []models.Violation{{Severity: models.SeverityWarning}}
	status, _, _ = validator.Decide(c, models.SchemaDiff{}, warning)
	if status != models.StatusPassWithWarnings {
		t.Errorf("status = %v, want PASS_WITH_WARNINGS", status)
	}

	// strict_mode escalates every warning-class violation to critical,
	// including per-column quality-rule warnings.
	c.StrictMode = true
	status, _, escalated := validator.Decide(c, models.SchemaDiff{}, warning)
	if status != models.StatusFail {
		t.Errorf("status = %v, want FAIL: strict_mode escalates quality-rule warnings", status)
	}
	if len(escalated) != 1 || escalated[0].Severity != models.SeverityCritical {
		t.Errorf("violations = %+v, want one escalated CRITICAL", escalated)
	}
	c.StrictMode = false

	status, _, _ = validator.Decide(c, models.SchemaDiff{}, nil)
	if status != models.StatusPass {
		t.Errorf("status = %v, want PASS with no violations", status)
	}
}

func TestDecideMissingColumnSeverityRespectsRequiredAndStrictMode(t *testing.T) {
	c := sampleContract()
	diff := models.SchemaDiff{MissingColumns: []string{"amount"}}

	status, _, violations := validator.Decide(c, diff, nil)
	if status != models.StatusPassWithWarnings {
		t.Errorf("status = %v, want PASS_WITH_WARNINGS for a missing non-required column", status)
	}
	if len(violations) != 1 || violations[0].Tag != models.TagSchemaWarning {
		t.Errorf("violations = %+v, want one SchemaWarning", violations)
	}

	c.StrictMode = true
	status, _, violations = validator.Decide(c, diff, nil)
	if status != models.StatusFail {
		t.Errorf("status = %v, want FAIL for a missing column under strict_mode", status)
	}
	if len(violations) != 1 || violations[0].Tag != models.TagSchemaCritical {
		t.Errorf("violations = %+v, want one SchemaCritical", violations)
	}
}

func TestDecideUnexpectedColumnWarnsUnlessStrict(t *testing.T) {
	c := sampleContract()
	diff := models.SchemaDiff{UnexpectedColumns: []string{"extra_col"}}

	status, _, _ := validator.Decide(c, diff, nil)
	if status != models.StatusPassWithWarnings {
		t.Errorf("status = %v, want PASS_WITH_WARNINGS for schema drift", status)
	}
}
