package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// RecordRun persists a completed RunRecord. RunRecords are never mutated
// after creation.
func (s *Store) RecordRun(ctx context.Context, r models.RunRecord) error {
	lock := s.lockFor(r.TableName)
	lock.Lock()
	defer lock.Unlock()

	violationsJSON, err := json.Marshal(r.Violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	profileJSON, err := json.Marshal(r.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_history(run_id, timestamp, table_name, file_hash, row_count, status,
			quality_score, anomaly_count, z_score_max, duration_ms, reason, violations_json, profile_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Timestamp, r.TableName, r.FileHash, r.RowCount, r.Status.String(),
		r.QualityScore, r.AnomalyCount, r.ZScoreMax, r.DurationMs, r.Reason, string(violationsJSON), string(profileJSON))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RunHistory returns the most recent `limit` runs for a table (all
// tables if table is empty), newest first.
func (s *Store) RunHistory(ctx context.Context, table string, limit int) ([]models.RunRecord, error) {
	var rows *sqlRows
	var err error
	if table == "" {
		rows, err = s.queryRunRows(ctx,
			`SELECT run_id, timestamp, table_name, file_hash, row_count, status, quality_score,
				anomaly_count, z_score_max, duration_ms, reason, violations_json, profile_json
			 FROM run_history ORDER BY timestamp DESC LIMIT ?`, limit)
	} else {
		rows, err = s.queryRunRows(ctx,
			`SELECT run_id, timestamp, table_name, file_hash, row_count, status, quality_score,
				anomaly_count, z_score_max, duration_ms, reason, violations_json, profile_json
			 FROM run_history WHERE table_name = ? ORDER BY timestamp DESC LIMIT ?`, table, limit)
	}
	if err != nil {
		return nil, err
	}
	return rows.records, nil
}

// sqlRows is a tiny materialized-result helper to keep queryRunRows
// callers free of manual rows.Close() bookkeeping.
type sqlRows struct {
	records []models.RunRecord
}

func (s *Store) queryRunRows(ctx context.Context, query string, args ...any) (*sqlRows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run_history: %w", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var statusStr, violationsJSON, profileJSON string
		if err := rows.Scan(&r.RunID, &r.Timestamp, &r.TableName, &r.FileHash, &r.RowCount, &statusStr,
			&r.QualityScore, &r.AnomalyCount, &r.ZScoreMax, &r.DurationMs, &r.Reason, &violationsJSON, &profileJSON); err != nil {
			return nil, fmt.Errorf("scan run_history row: %w", err)
		}
		status, err := models.ParseStatus(statusStr)
		if err != nil {
			return nil, fmt.Errorf("parse run status: %w", err)
		}
		r.Status = status
		if violationsJSON != "" {
			if err := json.Unmarshal([]byte(violationsJSON), &r.Violations); err != nil {
				return nil, fmt.Errorf("unmarshal violations: %w", err)
			}
		}
		if profileJSON != "" {
			if err := json.Unmarshal([]byte(profileJSON), &r.Profile); err != nil {
				return nil, fmt.Errorf("unmarshal profile: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sqlRows{records: out}, nil
}

// UpsertThreshold deletes then inserts the learned threshold row for a
// (table, metric), under the same per-table lock as AppendSamples.
func (s *Store) UpsertThreshold(ctx context.Context, t models.LearnedThreshold) error {
	lock := s.lockFor(t.TableName)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert_threshold tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM learned_thresholds WHERE table_name = ? AND metric_name = ?`,
		t.TableName, t.MetricName); err != nil {
		return fmt.Errorf("delete old threshold: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO learned_thresholds(table_name, metric_name, baseline_mean, baseline_std,
			baseline_kind, last_updated, sample_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TableName, t.MetricName, t.BaselineMean, t.BaselineStd, t.BaselineKind.String(),
		t.LastUpdated, t.SampleCount); err != nil {
		return fmt.Errorf("insert new threshold: %w", err)
	}
	return tx.Commit()
}

// Thresholds returns the learned thresholds currently held for table,
// ordered by metric name.
func (s *Store) Thresholds(ctx context.Context, table string) ([]models.LearnedThreshold, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, metric_name, baseline_mean, baseline_std, baseline_kind, last_updated, sample_count
		 FROM learned_thresholds WHERE table_name = ? ORDER BY metric_name`, table)
	if err != nil {
		return nil, fmt.Errorf("query learned_thresholds: %w", err)
	}
	defer rows.Close()

	var out []models.LearnedThreshold
	for rows.Next() {
		var t models.LearnedThreshold
		var kindStr string
		if err := rows.Scan(&t.TableName, &t.MetricName, &t.BaselineMean, &t.BaselineStd,
			&kindStr, &t.LastUpdated, &t.SampleCount); err != nil {
			return nil, fmt.Errorf("scan learned threshold: %w", err)
		}
		t.BaselineKind = models.ParseBaselineKind(kindStr)
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertRegistry performs a compare-and-swap upsert of the dataset
// registry row for table_name, under the table's write lock.
func (s *Store) UpsertRegistry(ctx context.Context, e models.DatasetRegistryEntry) error {
	lock := s.lockFor(e.TableName)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dataset_registry(table_name, contract_path, lifecycle, criticality,
			last_scanned, last_status, last_file_mtime, scan_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(table_name) DO UPDATE SET
			contract_path = excluded.contract_path,
			lifecycle = excluded.lifecycle,
			criticality = excluded.criticality,
			last_scanned = excluded.last_scanned,
			last_status = excluded.last_status,
			last_file_mtime = excluded.last_file_mtime,
			scan_count = dataset_registry.scan_count + 1`,
		e.TableName, e.ContractPath, e.Lifecycle.String(), e.Criticality.String(),
		e.LastScanned, e.LastStatus.String(), e.LastFileMtime, e.ScanCount)
	if err != nil {
		return fmt.Errorf("upsert registry: %w", err)
	}
	return nil
}

// RegistryEntry returns the current registry row for table, if any.
func (s *Store) RegistryEntry(ctx context.Context, table string) (models.DatasetRegistryEntry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT table_name, contract_path, lifecycle, criticality, last_scanned, last_status,
			last_file_mtime, scan_count FROM dataset_registry WHERE table_name = ?`, table)

	var e models.DatasetRegistryEntry
	var lifecycleStr, criticalityStr, statusStr string
	err := row.Scan(&e.TableName, &e.ContractPath, &lifecycleStr, &criticalityStr,
		&e.LastScanned, &statusStr, &e.LastFileMtime, &e.ScanCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DatasetRegistryEntry{}, false, nil
		}
		return models.DatasetRegistryEntry{}, false, fmt.Errorf("query registry entry: %w", err)
	}
	status, perr := models.ParseStatus(statusStr)
	if perr == nil {
		e.LastStatus = status
	}
	if lifecycleStr == "deprecated" {
		e.Lifecycle = models.LifecycleDeprecated
	}
	e.Criticality = models.ParseCriticality(criticalityStr)
	return e, true, nil
}

// EvaluateAll returns a consistent snapshot of every table's registry
// entry, used by run-all's skip_unchanged smart-scan decision.
func (s *Store) EvaluateAll(ctx context.Context) ([]models.DatasetRegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, contract_path, lifecycle, criticality, last_scanned, last_status,
			last_file_mtime, scan_count FROM dataset_registry ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("evaluate_all query: %w", err)
	}
	defer rows.Close()

	var out []models.DatasetRegistryEntry
	for rows.Next() {
		var e models.DatasetRegistryEntry
		var lifecycleStr, criticalityStr, statusStr string
		if err := rows.Scan(&e.TableName, &e.ContractPath, &lifecycleStr, &criticalityStr,
			&e.LastScanned, &statusStr, &e.LastFileMtime, &e.ScanCount); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		if status, perr := models.ParseStatus(statusStr); perr == nil {
			e.LastStatus = status
		}
		if lifecycleStr == "deprecated" {
			e.Lifecycle = models.LifecycleDeprecated
		}
		e.Criticality = models.ParseCriticality(criticalityStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// HasFileHash reports whether hash appears anywhere in run_history,
// used by the File Metadata Probe's duplicate-file detection.
func (s *Store) HasFileHash(ctx context.Context, hash string) bool {
	if hash == "" {
		return false
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM run_history WHERE file_hash = ?`, hash).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// mtimeEpsilon is the tolerance for the smart-scan mtime comparison.
const mtimeEpsilon = 10 * time.Millisecond

// Unchanged reports whether fileMtime is within mtimeEpsilon of the
// registry's last recorded mtime for table — the smart-scan
// short-circuit condition.
func Unchanged(entry models.DatasetRegistryEntry, found bool, fileMtime time.Time) bool {
	if !found {
		return false
	}
	delta := fileMtime.Sub(entry.LastFileMtime)
	if delta < 0 {
		delta = -delta
	}
	return delta <= mtimeEpsilon
}
