// Package orchestrator implements the Verdict Orchestrator: the
// state machine that drives one (file, table) run from contract
// resolution through verdict composition. It wires
// together the Contract Store, Baseline Store, Tabular Loader, Schema
// Validator, Consistency Checker, Statistical Profiler, Anomaly
// Engine, Contract Inferencer, Schema Remediator, and Impact Resolver;
// the Actuator and Alert Router act on the returned verdict one layer
// up, in the CLI.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pgEdge/data-gatekeeper/internal/advice"
	"github.com/pgEdge/data-gatekeeper/internal/anomaly"
	"github.com/pgEdge/data-gatekeeper/internal/baseline"
	"github.com/pgEdge/data-gatekeeper/internal/consistency"
	"github.com/pgEdge/data-gatekeeper/internal/contract"
	"github.com/pgEdge/data-gatekeeper/internal/gkerrors"
	"github.com/pgEdge/data-gatekeeper/internal/impact"
	"github.com/pgEdge/data-gatekeeper/internal/inferencer"
	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/models"
	"github.com/pgEdge/data-gatekeeper/internal/probe"
	"github.com/pgEdge/data-gatekeeper/internal/profiler"
	"github.com/pgEdge/data-gatekeeper/internal/remediator"
	"github.com/pgEdge/data-gatekeeper/internal/scancache"
	"github.com/pgEdge/data-gatekeeper/internal/validator"
)

// Per-stage timeout defaults.
const (
	defaultLoadTimeout  = 60 * time.Second
	defaultStageTimeout = 10 * time.Second
	defaultStoreTimeout = 5 * time.Second
)

// Orchestrator runs the gatekeeper state machine for one (file, table)
// pair and persists its outcome to the Baseline Store.
type Orchestrator struct {
	Contracts  *contract.Store
	Baselines  *baseline.Store
	Lineage    *models.LineageGraph
	LoaderOpts loader.Options
	Advisor    advice.Advisor
	Log        *zap.Logger
	// ScanCache is an optional Redis-backed mtime cache consulted by
	// RunAll's skip_unchanged short-circuit before it falls back to the
	// Baseline Store's registry. A nil cache is always a miss.
	ScanCache *scancache.Cache
}

// New builds an Orchestrator with a no-op Advisor and logger unless overridden.
func New(contracts *contract.Store, baselines *baseline.Store, lineage *models.LineageGraph, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Contracts: contracts,
		Baselines: baselines,
		Lineage:   lineage,
		Advisor:   advice.NoopAdvisor{},
		Log:       log,
	}
}

// Run executes the full gatekeeping state machine for file/table.
// It never returns an error for an ordinary pipeline failure — those
// are reported as a FAIL verdict — only for conditions the caller must
// react to directly (none at present; reserved for future use).
func (o *Orchestrator) Run(ctx context.Context, file, table string) (v *models.Verdict, err error) {
	start := time.Now()
	runID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			gerr := gkerrors.Internal("run", fmt.Errorf("%v", r))
			o.Log.Error("recovered panic in orchestrated run", zap.String("table", table), zap.Any("panic", r))
			v = o.emitFail(file, table, start, nil, []models.Violation{gerr.Violation(models.SeverityCritical)},
				[]string{"INTERNAL: recovered from panic"})
			err = nil
		}
	}()

	if cerr := checkCtx(ctx, "locate_contract"); cerr != nil {
		return o.emitFail(file, table, start, nil, []models.Violation{cerr.Violation(models.SeverityCritical)}, nil), nil
	}

	path, c, found := o.Contracts.Locate(table)
	if !found {
		return o.runInference(ctx, file, table, start)
	}
	return o.runValidated(ctx, file, table, path, c, start, runID)
}

// runInference handles the CONTRACT_MISSING side path: LOAD_FOR_INFERENCE
// -> PROFILE -> INFER_DRAFT -> EMIT(CONTRACT_MISSING).
func (o *Orchestrator) runInference(ctx context.Context, file, table string, start time.Time) (*models.Verdict, error) {
	execLog := []string{"LOCATE_CONTRACT: not found"}

	lctx, lcancel := context.WithTimeout(ctx, defaultLoadTimeout)
	t, err := loader.Load(lctx, file, table, o.LoaderOpts)
	lcancel()
	if err != nil {
		gerr := stageError("load_for_inference", err)
		if gerr == nil {
			gerr = gkerrors.LoadError("load_for_inference", err.Error())
		}
		return o.emitFail(file, table, start, nil, []models.Violation{gerr.Violation(models.SeverityCritical)}, execLog), nil
	}
	execLog = append(execLog, "LOAD_FOR_INFERENCE")

	profile := profiler.Profile(t)
	execLog = append(execLog, "PROFILE")

	draft := inferencer.Infer(table, t, profile)
	execLog = append(execLog, "INFER_DRAFT", "EMIT(CONTRACT_MISSING)")

	v := &models.Verdict{
		Timestamp:     time.Now().UTC(),
		File:          file,
		TableName:     table,
		Status:        models.StatusContractMissing,
		ExecutionTime: time.Since(start).Seconds(),
		StatsSummary:  map[string]any{"row_count": t.TotalRows},
		ExecutionLog:  execLog,
		QualityMetrics: map[string]any{},
		HealthIndicator: models.HealthIndicator{
			SafeToUse: false,
			Reasons:   []string{"no contract is registered for this table"},
		},
		InferredContract: draft,
	}

	o.recordRun(ctx, uuid.New().String(), table, "", t.TotalRows, v, profile, start, "no contract found; draft inferred", true)

	presult := probe.Result{}
	if info, serr := os.Stat(file); serr == nil {
		presult.ModTime = info.ModTime()
	}
	o.upsertRegistry(ctx, table, "", nil, v, presult)
	return v, nil
}

// runValidated drives the full state machine once a contract has been
// located: PROBE_METADATA -> LOAD_DATA -> VALIDATE_SCHEMA ->
// CHECK_CONSISTENCY -> PROFILE -> DETECT_ANOMALIES -> DETECT_SEASONAL
// -> COMPOSE_VERDICT.
func (o *Orchestrator) runValidated(ctx context.Context, file, table, path string, c *models.Contract, start time.Time, runID string) (*models.Verdict, error) {
	execLog := []string{"LOCATE_CONTRACT: found " + path}

	freshness, ferr := probe.ParseFreshness(c.Quality.Freshness.Threshold)
	if ferr != nil {
		freshness = 24 * time.Hour
	}

	pctx, pcancel := context.WithTimeout(ctx, defaultStageTimeout)
	presult, err := probe.Run(pctx, file, freshness, o.Baselines)
	pcancel()
	if err != nil {
		gerr := stageError("probe_metadata", err)
		if gerr == nil {
			gerr = gkerrors.LoadError("probe_metadata", err.Error())
		}
		return o.emitFail(file, table, start, c, []models.Violation{gerr.Violation(models.SeverityCritical)}, execLog), nil
	}
	execLog = append(execLog, "PROBE_METADATA: "+string(presult.Status))
	if presult.Decision == probe.DecisionStop {
		gerr := gkerrors.Timeliness("probe_metadata", presult.Reason)
		v := o.emitFail(file, table, start, c, []models.Violation{gerr.Violation(models.SeverityCritical)}, execLog)
		o.recordRun(ctx, runID, table, presult.ContentHash, 0, v, nil, start, presult.Reason, true)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}

	if cerr := checkCtx(ctx, "load_data"); cerr != nil {
		return o.emitFail(file, table, start, c, []models.Violation{cerr.Violation(models.SeverityCritical)}, execLog), nil
	}
	lctx, lcancel := context.WithTimeout(ctx, defaultLoadTimeout)
	t, err := loader.Load(lctx, file, table, o.LoaderOpts)
	lcancel()
	if err != nil {
		gerr := stageError("load_data", err)
		if gerr == nil {
			gerr = gkerrors.LoadError("load_data", err.Error())
		}
		v := o.emitFail(file, table, start, c, []models.Violation{gerr.Violation(models.SeverityCritical)}, execLog)
		o.recordRun(ctx, runID, table, presult.ContentHash, 0, v, nil, start, gerr.Msg, true)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}
	execLog = append(execLog, fmt.Sprintf("LOAD_DATA: %d rows", t.TotalRows))

	if cerr := checkCtx(ctx, "validate_schema"); cerr != nil {
		return o.emitFail(file, table, start, c, []models.Violation{cerr.Violation(models.SeverityCritical)}, execLog), nil
	}
	vctx, vcancel := context.WithTimeout(ctx, defaultStageTimeout)
	diff, err := validator.DiffSchema(vctx, c, t)
	var qualityViolations []models.Violation
	if err == nil {
		qualityViolations, err = validator.ValidateQuality(vctx, c, t, time.Now())
	}
	vcancel()
	if err != nil {
		gerr := stageError("validate_schema", err)
		if gerr == nil {
			gerr = gkerrors.Internal("validate_schema", err)
		}
		v := o.emitFail(file, table, start, c, []models.Violation{gerr.Violation(models.SeverityCritical)}, execLog)
		o.recordRun(ctx, runID, table, presult.ContentHash, t.TotalRows, v, nil, start, gerr.Msg, true)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}
	diff.QualityViolations = qualityViolations

	schemaStatus, schemaReason, schemaViolations := validator.Decide(c, diff, qualityViolations)
	execLog = append(execLog, "VALIDATE_SCHEMA: "+schemaStatus.String())

	if schemaStatus == models.StatusFail {
		v := o.emitFail(file, table, start, c, schemaViolations, execLog)
		v.SchemaEvolution = models.SchemaEvolution{SuggestedUpdates: diff.SuggestedColumns}
		v.RemediationCandidate = remediator.Propose(c, diff) // advisory only; never auto-applied
		if note, aerr := o.Advisor.Advise(ctx, c, diff); aerr == nil {
			v.Advice = note
		}
		o.recordRun(ctx, runID, table, presult.ContentHash, t.TotalRows, v, nil, start, schemaReason, true)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}

	if cerr := checkCtx(ctx, "check_consistency"); cerr != nil {
		return o.emitFail(file, table, start, c, []models.Violation{cerr.Violation(models.SeverityCritical)}, execLog), nil
	}
	cctx, ccancel := context.WithTimeout(ctx, defaultStageTimeout)
	consistencyResults := o.checkConsistency(cctx, filepath.Dir(file), c, t)
	cerr := cctx.Err()
	ccancel()
	if cerr != nil {
		gerr := stageError("check_consistency", cerr)
		v := o.emitFail(file, table, start, c, []models.Violation{gerr.Violation(models.SeverityCritical)}, execLog)
		o.recordRun(ctx, runID, table, presult.ContentHash, t.TotalRows, v, nil, start, gerr.Msg, true)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}
	execLog = append(execLog, fmt.Sprintf("CHECK_CONSISTENCY: %d foreign keys", len(c.ForeignKeys)))

	var consistencyViolations []models.Violation
	hasOrphan := false
	for _, cr := range consistencyResults {
		if cr.Skipped {
			continue
		}
		if cr.OrphanCount > 0 {
			hasOrphan = true
			gerr := gkerrors.ConsistencyBreak("check_consistency",
				fmt.Sprintf("%d orphan rows (%.2f%%) referencing %s", cr.OrphanCount, cr.OrphanPercent, cr.ForeignKey.ReferenceTable))
			consistencyViolations = append(consistencyViolations, gerr.Violation(models.SeverityCritical))
		}
	}
	if hasOrphan {
		v := o.emitFail(file, table, start, c, consistencyViolations, execLog)
		v.ConsistencyResult = consistencyResults
		o.recordRun(ctx, runID, table, presult.ContentHash, t.TotalRows, v, nil, start, "referential integrity violation", false)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}

	if cerr := checkCtx(ctx, "profile"); cerr != nil {
		return o.emitFail(file, table, start, c, []models.Violation{cerr.Violation(models.SeverityCritical)}, execLog), nil
	}
	profile := profiler.Profile(t)
	execLog = append(execLog, "PROFILE")

	metrics := metricsFromProfile(t, profile)
	now := time.Now()

	actx, acancel := context.WithTimeout(ctx, defaultStageTimeout)
	anomalies, err := anomaly.Evaluate(actx, o.Baselines, table, metrics, now, c.EffectiveThresholds())
	acancel()
	if err != nil {
		gerr := stageError("detect_anomalies", err)
		if gerr == nil {
			gerr = gkerrors.Internal("detect_anomalies", err)
		}
		v := o.emitFail(file, table, start, c,
			append(append([]models.Violation(nil), schemaViolations...), gerr.Violation(models.SeverityCritical)), execLog)
		o.recordRun(ctx, runID, table, presult.ContentHash, t.TotalRows, v, profile, start, gerr.Msg, true)
		o.upsertRegistry(ctx, table, path, c, v, presult)
		return v, nil
	}
	execLog = append(execLog, fmt.Sprintf("DETECT_ANOMALIES: %d flagged", countFlagged(anomalies)))

	seasonal := anomaly.DetectSeasonal(table, anomalies, now)
	execLog = append(execLog, "DETECT_SEASONAL", "COMPOSE_VERDICT")

	impactRes := impact.Resolve(o.Lineage, table)

	status, anomalyViolations := composeAnomalyStatus(schemaStatus, anomalies, impactRes.OverallCriticality)

	allViolations := append(append([]models.Violation(nil), schemaViolations...), anomalyViolations...)
	thresholds := c.EffectiveThresholds()
	qs := qualityScore(allViolations)
	reason := schemaReason
	if qs <= thresholds.QualityScoreBlock {
		status = models.StatusFail
		reason = "quality score override: below quality_score_block"
		allViolations = append(allViolations, gkerrors.QualityBlock("compose_verdict",
			fmt.Sprintf("quality score %.1f is below quality_score_block %.1f", qs, thresholds.QualityScoreBlock)).Violation(models.SeverityCritical))
	} else if qs < thresholds.QualityScoreWarn && status == models.StatusPass {
		status = models.StatusPassWithWarnings
		reason = "quality score override: below quality_score_warn"
	}

	historyCtx, hcancel := context.WithTimeout(ctx, defaultStoreTimeout)
	history, _ := o.Baselines.RunHistory(historyCtx, table, 20)
	hcancel()
	priority := impact.ComputeTablePriority(history, impactRes.OverallCriticality)

	v := &models.Verdict{
		Timestamp:         time.Now().UTC(),
		File:              file,
		TableName:         table,
		Status:            status,
		ExecutionTime:     time.Since(start).Seconds(),
		CriticalErrors:    onlySeverity(allViolations, models.SeverityCritical),
		Warnings:          onlySeverity(allViolations, models.SeverityWarning),
		StatsSummary:      map[string]any{"row_count": t.TotalRows, "z_score_max": anomaly.MaxZ(anomalies)},
		ExecutionLog:      execLog,
		QualityMetrics:    map[string]any{"quality_score": qs},
		HealthIndicator:   models.HealthIndicator{SafeToUse: status == models.StatusPass || status == models.StatusPassWithWarnings},
		TablePriority:     priority,
		SeasonalAnalysis:  seasonal,
		ConsistencyResult: consistencyResults,
		ActiveContract:    c,
		QuarantineIndices: quarantineIndices(profile),
	}
	if !v.HealthIndicator.SafeToUse {
		v.HealthIndicator.Reasons = violationMessages(v.CriticalErrors)
	}

	o.recordRun(ctx, runID, table, presult.ContentHash, t.TotalRows, v, profile, start, reason, false)
	o.upsertRegistry(ctx, table, path, c, v, presult)
	return v, nil
}

// composeAnomalyStatus applies the anomaly/impact decision matrix: for
// LOW/MEDIUM criticality tables an anomaly never forces FAIL, only a
// warning; for HIGH/CRITICAL tables a CRITICAL anomaly (|z| strictly
// greater than z_crit) forces FAIL.
func composeAnomalyStatus(base models.Status, anomalies []models.Anomaly, criticality models.Criticality) (models.Status, []models.Violation) {
	status := base
	var violations []models.Violation
	for _, a := range anomalies {
		if a.Severity == "" {
			continue
		}
		sev := models.SeverityWarning
		if a.Severity == "critical" && criticality >= models.CriticalityHigh {
			sev = models.SeverityCritical
			status = models.StatusFail
		} else if status == models.StatusPass {
			status = models.StatusPassWithWarnings
		}
		violations = append(violations, models.Violation{
			Tag:        models.TagAnomalyCritical,
			Severity:   sev,
			Stage:      "detect_anomalies",
			Message:    a.Note,
			ObjectName: a.Metric,
		})
	}
	return status, violations
}

// checkConsistency evaluates every declared foreign key, loading its
// reference table from a sibling file next to the main input. A
// reference table that cannot be loaded degrades to a skipped result
// rather than aborting the run; the caller inspects ctx afterwards to
// distinguish a deadline or cancellation from a genuinely missing
// sibling.
func (o *Orchestrator) checkConsistency(ctx context.Context, dir string, c *models.Contract, t *loader.Table) []models.ConsistencyResult {
	results := make([]models.ConsistencyResult, 0, len(c.ForeignKeys))
	for _, fk := range c.ForeignKeys {
		ref, err := loadSiblingTable(ctx, dir, fk.ReferenceTable)
		if err != nil {
			results = append(results, consistency.CheckSkipped(fk, err.Error()))
			continue
		}
		result, err := consistency.Check(ctx, fk, t, ref)
		if err != nil {
			results = append(results, consistency.CheckSkipped(fk, err.Error()))
			continue
		}
		results = append(results, result)
	}
	return results
}

// loadSiblingTable resolves reference_table to a file in dir sharing
// one of the Tabular Loader's supported extensions.
func loadSiblingTable(ctx context.Context, dir, table string) (*loader.Table, error) {
	for _, ext := range []string{".csv", ".parquet", ".json"} {
		candidate := filepath.Join(dir, table+ext)
		if t, err := loader.Load(ctx, candidate, table, loader.Options{}); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no sibling file found for reference table %q in %s", table, dir)
}

// metricsFromProfile extracts the numeric signals the Anomaly Engine
// scores each run: total row count plus per-column mean and null rate
// for every numeric column.
func metricsFromProfile(t *loader.Table, profile map[string]models.ColumnProfile) map[string]float64 {
	metrics := map[string]float64{"row_count": float64(t.TotalRows)}
	for name, p := range profile {
		metrics["null_rate_"+name] = p.NullFraction
		if p.Mean != nil {
			metrics["mean_"+name] = *p.Mean
		}
	}
	return metrics
}

// quarantineIndices dedupes each column's flagged outlier row indices
// into the verdict document's quarantine_indices, capped
// at 100 entries.
func quarantineIndices(profile map[string]models.ColumnProfile) []int {
	seen := make(map[int]bool)
	for _, p := range profile {
		for _, idx := range p.OutlierIndices {
			seen[idx] = true
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}

func countFlagged(anomalies []models.Anomaly) int {
	n := 0
	for _, a := range anomalies {
		if a.Severity != "" {
			n++
		}
	}
	return n
}

// qualityScore is a simple 0-100 penalty score: each critical
// violation costs 20 points, each warning costs 5, floored at zero.
func qualityScore(violations []models.Violation) float64 {
	score := 100.0
	for _, v := range violations {
		if v.Severity == models.SeverityCritical {
			score -= 20
		} else {
			score -= 5
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func onlySeverity(violations []models.Violation, sev models.Severity) []models.Violation {
	var out []models.Violation
	for _, v := range violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

func violationMessages(violations []models.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Message)
	}
	return out
}

// emitFail builds a minimal FAIL verdict for an early pipeline exit.
func (o *Orchestrator) emitFail(file, table string, start time.Time, c *models.Contract, violations []models.Violation, execLog []string) *models.Verdict {
	return &models.Verdict{
		Timestamp:       time.Now().UTC(),
		File:            file,
		TableName:       table,
		Status:          models.StatusFail,
		ExecutionTime:   time.Since(start).Seconds(),
		CriticalErrors:  onlySeverity(violations, models.SeverityCritical),
		Warnings:        onlySeverity(violations, models.SeverityWarning),
		StatsSummary:    map[string]any{},
		ExecutionLog:    execLog,
		QualityMetrics:  map[string]any{},
		HealthIndicator: models.HealthIndicator{SafeToUse: false, Reasons: violationMessages(violations)},
		ActiveContract:  c,
	}
}

// recordRun persists the RunRecord for a completed (or early-exited)
// run. Store write failures are logged, never fatal: the verdict is
// still returned, only learning is skipped.
// schemaCriticalStop reports whether the Schema Validator itself fired
// CRITICAL_STOP; metrics are appended to the Baseline Store only when
// it did not, regardless of any later anomaly- or
// quality-score-driven FAIL.
func (o *Orchestrator) recordRun(ctx context.Context, runID, table, fileHash string, rowCount int64, v *models.Verdict, profile map[string]models.ColumnProfile, start time.Time, reason string, schemaCriticalStop bool) {
	sctx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer cancel()

	rec := models.RunRecord{
		RunID:        runID,
		Timestamp:    time.Now().UTC(),
		TableName:    table,
		FileHash:     fileHash,
		RowCount:     rowCount,
		Status:       v.Status,
		QualityScore: qualityScoreOf(v),
		AnomalyCount: len(v.SeasonalAnalysis.Anomalies),
		ZScoreMax:    anomaly.MaxZ(v.SeasonalAnalysis.Anomalies),
		DurationMs:   time.Since(start).Milliseconds(),
		Reason:       reason,
		Violations:   append(append([]models.Violation(nil), v.CriticalErrors...), v.Warnings...),
		Profile:      profile,
	}
	if err := o.Baselines.RecordRun(sctx, rec); err != nil {
		o.Log.Warn("record run failed", zap.String("table", table), zap.Error(err))
		return
	}

	if schemaCriticalStop {
		return // learning policy gate: never append metrics past a Schema Validator CRITICAL_STOP
	}
	actx, acancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer acancel()
	metrics := map[string]float64{"row_count": float64(rowCount)}
	for name, p := range profile {
		metrics["null_rate_"+name] = p.NullFraction
		if p.Mean != nil {
			metrics["mean_"+name] = *p.Mean
		}
	}
	now := time.Now()
	if err := o.Baselines.AppendSamples(actx, runID, table, now, metrics); err != nil {
		o.Log.Warn("append samples failed", zap.String("table", table), zap.Error(err))
		return
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	tctx, tcancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer tcancel()
	if err := o.Baselines.RefreshThresholds(tctx, table, names, int(now.Weekday()), now); err != nil {
		o.Log.Warn("refresh thresholds failed", zap.String("table", table), zap.Error(err))
	}
}

func qualityScoreOf(v *models.Verdict) float64 {
	if qs, ok := v.QualityMetrics["quality_score"].(float64); ok {
		return qs
	}
	return qualityScore(append(append([]models.Violation(nil), v.CriticalErrors...), v.Warnings...))
}

// upsertRegistry records the dataset registry row used by run-all's
// smart-scan short-circuit and the fleet rollup.
func (o *Orchestrator) upsertRegistry(ctx context.Context, table, path string, c *models.Contract, v *models.Verdict, presult probe.Result) {
	rctx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer cancel()

	entry := models.DatasetRegistryEntry{
		TableName:     table,
		ContractPath:  path,
		Criticality:   v.TablePriority.Criticality,
		LastScanned:   time.Now().UTC(),
		LastStatus:    v.Status,
		LastFileMtime: presult.ModTime,
	}
	if c != nil {
		entry.Lifecycle = c.Info.Lifecycle()
	}
	if err := o.Baselines.UpsertRegistry(rctx, entry); err != nil {
		o.Log.Warn("upsert registry failed", zap.String("table", table), zap.Error(err))
		return
	}
	o.ScanCache.Record(rctx, table, presult.ModTime)
}

// stageError classifies an error bubbled out of a deadline-bounded
// stage: DeadlineExceeded becomes a Timeout, Canceled a Cancelled
// (both FAIL the run), anything else is left for the caller to tag.
func stageError(stage string, err error) *gkerrors.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return gkerrors.Timeout(stage)
	case errors.Is(err, context.Canceled):
		return gkerrors.Cancelled(stage)
	}
	return nil
}

// checkCtx reports whether ctx has already been cancelled or has
// exceeded its deadline, tagging the two cases distinctly.
func checkCtx(ctx context.Context, stage string) *gkerrors.Error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gkerrors.Timeout(stage)
	}
	return gkerrors.Cancelled(stage)
}
