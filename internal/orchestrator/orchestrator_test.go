package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/baseline"
	"github.com/pgEdge/data-gatekeeper/internal/contract"
	"github.com/pgEdge/data-gatekeeper/internal/models"
	"github.com/pgEdge/data-gatekeeper/internal/orchestrator"
)

func writeContract(t *testing.T, dir, table, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, table+".yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write contract: %v", err)
	}
}

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func newTestOrchestrator(t *testing.T) (*orchestrator.Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	contractsDir := filepath.Join(dir, "contracts")
	if err := os.MkdirAll(contractsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	contracts := contract.New(contractsDir, nil)

	baselines, err := baseline.Open(filepath.Join(dir, "baseline.db"))
	if err != nil {
		t.Fatalf("open baseline store: %v", err)
	}
	t.Cleanup(func() { baselines.Close() })

	lineage := &models.LineageGraph{Edges: map[string][]models.Consumer{}}
	o := orchestrator.New(contracts, baselines, lineage, nil)
	return o, dir
}

const ordersContract = `
table_name: orders
columns:
  - name: id
    physical_type: integer
    nullable: false
    is_primary_key: true
    unique: true
  - name: amount
    physical_type: float
    nullable: false
quality:
  freshness:
    threshold: 9999h
info:
  version: 1
  owner: test
  lifecycle: active
`

func TestRunContractMissingInfersDraft(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	file := writeCSV(t, dir, "ghost.csv", "id,amount\n1,10\n2,20\n")

	v, err := o.Run(context.Background(), file, "ghost")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusContractMissing {
		t.Fatalf("status = %v, want CONTRACT_MISSING", v.Status)
	}
	if v.InferredContract == nil {
		t.Fatal("expected an inferred contract draft")
	}
	if v.HealthIndicator.SafeToUse {
		t.Error("a contract-missing run should never be safe to use")
	}
}

func TestRunPassOnCleanFile(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)
	file := writeCSV(t, dir, "orders.csv", "id,amount\n1,10.0\n2,20.0\n3,30.0\n")

	v, err := o.Run(context.Background(), file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusPass {
		t.Fatalf("status = %v, want PASS: errors=%v warnings=%v", v.Status, v.CriticalErrors, v.Warnings)
	}
	if !v.HealthIndicator.SafeToUse {
		t.Error("a PASS verdict should be safe to use")
	}
	if v.ActiveContract == nil || v.ActiveContract.TableName != "orders" {
		t.Error("expected ActiveContract to be populated")
	}
}

func TestRunFailOnMissingRequiredColumn(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	body := `
table_name: orders
columns:
  - name: id
    physical_type: integer
    nullable: false
    is_primary_key: true
    unique: true
  - name: amount
    physical_type: float
    nullable: false
    required: true
quality:
  freshness:
    threshold: 9999h
info:
  version: 1
`
	writeContract(t, filepath.Join(dir, "contracts"), "orders", body)
	file := writeCSV(t, dir, "orders.csv", "id\n1\n2\n")

	v, err := o.Run(context.Background(), file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Fatalf("status = %v, want FAIL", v.Status)
	}
	if len(v.CriticalErrors) == 0 {
		t.Error("expected at least one critical error for a missing required column")
	}
	if v.RemediationCandidate == nil {
		t.Error("expected a remediation candidate to be proposed on schema FAIL")
	}
}

func TestRunFailOnConsistencyOrphan(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	body := `
table_name: line_items
columns:
  - name: id
    physical_type: integer
    nullable: false
  - name: order_id
    physical_type: integer
    nullable: false
foreign_keys:
  - columns: [order_id]
    reference_table: orders
    reference_columns: [id]
quality:
  freshness:
    threshold: 9999h
info:
  version: 1
`
	writeContract(t, filepath.Join(dir, "contracts"), "line_items", body)
	writeCSV(t, dir, "orders.csv", "id\n1\n2\n")
	file := writeCSV(t, dir, "line_items.csv", "id,order_id\n1,1\n2,99\n")

	v, err := o.Run(context.Background(), file, "line_items")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Fatalf("status = %v, want FAIL for an orphan foreign key", v.Status)
	}
	if len(v.ConsistencyResult) != 1 || v.ConsistencyResult[0].OrphanCount != 1 {
		t.Errorf("consistency result = %+v, want one orphan", v.ConsistencyResult)
	}
}

func TestRunLowCriticalityAnomalyNeverFails(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		file := writeCSV(t, dir, "orders.csv", csvOfSize(1000, i))
		if _, err := o.Run(ctx, file, "orders"); err != nil {
			t.Fatalf("training run %d: %v", i, err)
		}
	}

	file := writeCSV(t, dir, "orders.csv", csvOfSize(100, 999))
	v, err := o.Run(ctx, file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status == models.StatusFail {
		t.Errorf("LOW-criticality table anomaly should never force FAIL, got %v", v.Status)
	}
}

func TestRunHighCriticalityAnomalyFails(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)
	o.Lineage.Edges["orders"] = []models.Consumer{{Name: "warehouse", Criticality: models.CriticalityHigh}}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		file := writeCSV(t, dir, "orders.csv", csvOfSize(1000, i))
		if _, err := o.Run(ctx, file, "orders"); err != nil {
			t.Fatalf("training run %d: %v", i, err)
		}
	}

	file := writeCSV(t, dir, "orders.csv", csvOfSize(100, 999))
	v, err := o.Run(ctx, file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Errorf("HIGH-criticality table with a volume anomaly should FAIL, got %v", v.Status)
	}
	if v.TablePriority.Criticality != models.CriticalityHigh {
		t.Errorf("table priority criticality = %v, want HIGH", v.TablePriority.Criticality)
	}
}

func TestRunLearnsFromAnAnomalyDrivenFailWhenSchemaPassed(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)
	o.Lineage.Edges["orders"] = []models.Consumer{{Name: "warehouse", Criticality: models.CriticalityHigh}}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		file := writeCSV(t, dir, "orders.csv", csvOfSize(1000, i))
		if _, err := o.Run(ctx, file, "orders"); err != nil {
			t.Fatalf("training run %d: %v", i, err)
		}
	}

	weekday := int(time.Now().Weekday())
	meanBefore, _, _, err := o.Baselines.SeasonalBaseline(ctx, "orders", "row_count", weekday)
	if err != nil {
		t.Fatalf("seasonal baseline before: %v", err)
	}

	file := writeCSV(t, dir, "orders.csv", csvOfSize(100, 999))
	v, err := o.Run(ctx, file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Fatalf("status = %v, want FAIL from the volume anomaly", v.Status)
	}

	meanAfter, _, _, err := o.Baselines.SeasonalBaseline(ctx, "orders", "row_count", weekday)
	if err != nil {
		t.Fatalf("seasonal baseline after: %v", err)
	}
	if meanAfter >= meanBefore {
		t.Errorf("mean row_count = %v, want it to shift down from %v: the anomaly-driven FAIL run's metrics should still be learned because the schema validator did not CRITICAL_STOP", meanAfter, meanBefore)
	}
}

func TestRunQualityScoreExactlyAtBlockThresholdFails(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	body := `
table_name: orders
columns:
  - name: id
    physical_type: integer
    nullable: false
  - name: amount
    physical_type: float
    nullable: false
    min_value: 0
quality:
  freshness:
    threshold: 9999h
  anomaly_thresholds:
    quality_score_block: 80
    quality_score_warn: 90
info:
  version: 1
`
	writeContract(t, filepath.Join(dir, "contracts"), "orders", body)
	// Four below-min_value warnings at 5 points each costs exactly 20,
	// landing the quality score precisely on quality_score_block (80).
	file := writeCSV(t, dir, "orders.csv", "id,amount\n1,-1\n2,-1\n3,-1\n4,-1\n5,1\n")

	v, err := o.Run(context.Background(), file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Errorf("status = %v, want FAIL: quality_score == quality_score_block must FAIL per the boundary rule", v.Status)
	}
}

func TestRunPopulatesQuarantineIndicesFromColumnOutliers(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)

	body := "id,amount\n"
	for i := 1; i <= 20; i++ {
		body += fmt.Sprintf("%d,%.2f\n", i, 10.0+float64(i%3))
	}
	body += "21,100000.00\n"
	file := writeCSV(t, dir, "orders.csv", body)

	v, err := o.Run(context.Background(), file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(v.QuarantineIndices) == 0 {
		t.Error("expected quarantine_indices to carry the profiler's flagged outlier row(s)")
	}
}

// csvOfSize builds an orders.csv body of approximately n data rows
// (n plus a small seed-dependent jitter, so row_count has nonzero
// variance to learn a baseline std from) and varies the amount value
// per seed so repeated writes never hash-collide as duplicates (the
// File Metadata Probe's duplicate-content check).
func csvOfSize(n, seed int) string {
	rows := n + seed%5
	amount := 10.0 + float64(seed)*0.01
	var sb strings.Builder
	sb.WriteString("id,amount\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "%d,%.4f\n", i+1, amount)
	}
	return sb.String()
}

func TestRunCancelledContextFailsWithoutLearning(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)
	file := writeCSV(t, dir, "orders.csv", "id,amount\n1,10.0\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := o.Run(ctx, file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Fatalf("status = %v, want FAIL for a cancelled run", v.Status)
	}
	found := false
	for _, e := range v.CriticalErrors {
		if e.Tag == models.TagCancelled && strings.Contains(e.Message, "cancelled") {
			found = true
		}
	}
	if !found {
		t.Errorf("critical errors = %+v, want a Cancelled violation", v.CriticalErrors)
	}

	_, _, kind, berr := o.Baselines.SeasonalBaseline(context.Background(), "orders", "row_count", int(time.Now().Weekday()))
	if berr != nil {
		t.Fatalf("seasonal baseline: %v", berr)
	}
	if kind != models.BaselineInitializing {
		t.Errorf("baseline kind = %v, want initializing: a cancelled run must not write metrics", kind)
	}
}

func TestRunExpiredDeadlineFailsWithTimeoutStage(t *testing.T) {
	o, dir := newTestOrchestrator(t)
	writeContract(t, filepath.Join(dir, "contracts"), "orders", ordersContract)
	file := writeCSV(t, dir, "orders.csv", "id,amount\n1,10.0\n")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	v, err := o.Run(ctx, file, "orders")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.Status != models.StatusFail {
		t.Fatalf("status = %v, want FAIL for a timed-out run", v.Status)
	}
	found := false
	for _, e := range v.CriticalErrors {
		if e.Tag == models.TagTimeout && strings.Contains(e.Message, "timeout in stage") {
			found = true
		}
	}
	if !found {
		t.Errorf("critical errors = %+v, want a Timeout violation naming its stage", v.CriticalErrors)
	}
}
