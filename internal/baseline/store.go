// Package baseline implements the Baseline Store: durable run
// history, learned thresholds, and the dataset registry, backed by an
// embedded modernc.org/sqlite database. Writes are serialized per
// table_name; reads are consistent snapshots.
package baseline

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metric_history (
	run_id TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	table_name TEXT NOT NULL,
	metric_name TEXT NOT NULL,
	metric_value DOUBLE NOT NULL,
	day_of_week INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_history_lookup
	ON metric_history(table_name, metric_name, day_of_week);

CREATE TABLE IF NOT EXISTS run_history (
	run_id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	table_name TEXT NOT NULL,
	file_hash TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	status TEXT NOT NULL,
	quality_score DOUBLE NOT NULL,
	anomaly_count INTEGER NOT NULL,
	z_score_max DOUBLE NOT NULL,
	duration_ms INTEGER NOT NULL,
	reason TEXT,
	violations_json TEXT,
	profile_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_run_history_table_ts ON run_history(table_name, timestamp);

CREATE TABLE IF NOT EXISTS learned_thresholds (
	table_name TEXT NOT NULL,
	metric_name TEXT NOT NULL,
	baseline_mean DOUBLE NOT NULL,
	baseline_std DOUBLE NOT NULL,
	baseline_kind TEXT NOT NULL,
	last_updated DATETIME NOT NULL,
	sample_count INTEGER NOT NULL,
	PRIMARY KEY (table_name, metric_name)
);

CREATE TABLE IF NOT EXISTS dataset_registry (
	table_name TEXT PRIMARY KEY,
	contract_path TEXT,
	lifecycle TEXT,
	criticality TEXT,
	last_scanned DATETIME,
	last_status TEXT,
	last_file_mtime DATETIME,
	scan_count INTEGER NOT NULL DEFAULT 0
);
`

// Store is the embedded-sqlite-backed Baseline Store.
type Store struct {
	db *sql.DB

	// tableLocks serializes writes per table_name.
	tableLocks sync.Map // map[string]*sync.Mutex
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the store schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open baseline store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite is single-writer
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply baseline store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// newStoreFromDB builds a Store around an already-open *sql.DB,
// skipping the sqlite-specific schema setup. Used by tests that need
// to inject a github.com/DATA-DOG/go-sqlmock connection to exercise
// store write-failure paths (baseline store write failures are
// logged and the run proceeds) without
// fighting a real embedded database into an error state.
func newStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) lockFor(table string) *sync.Mutex {
	l, _ := s.tableLocks.LoadOrStore(table, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// AppendSamples writes one MetricSample per metric, serialized per
// table_name. Per the learning policy, callers must
// not invoke this when the Schema Validator fired CRITICAL_STOP.
func (s *Store) AppendSamples(ctx context.Context, runID, table string, ts time.Time, metrics map[string]float64) error {
	lock := s.lockFor(table)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append_samples tx: %w", err)
	}
	defer tx.Rollback()

	dow := int(ts.Weekday())
	for name, value := range metrics {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO metric_history(run_id, timestamp, table_name, metric_name, metric_value, day_of_week)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID, ts, table, name, value, dow)
		if err != nil {
			return fmt.Errorf("append sample %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append_samples: %w", err)
	}
	return nil
}

// SeasonalBaseline selects the baseline kind: seasonal when ≥3
// samples exist for the same weekday, else global over the most recent
// 30 samples of any weekday, else initializing.
func (s *Store) SeasonalBaseline(ctx context.Context, table, metric string, dayOfWeek int) (mean, std float64, kind models.BaselineKind, err error) {
	values, kind, err := s.baselineWindow(ctx, table, metric, dayOfWeek)
	if err != nil {
		return 0, 0, models.BaselineInitializing, err
	}
	mean, std = meanStd(values)
	return mean, std, kind, nil
}

// baselineWindow selects the sample window a baseline is computed
// over: the same-weekday series when it has ≥3 samples, else the 30
// most recent samples of any weekday, else nothing (initializing).
func (s *Store) baselineWindow(ctx context.Context, table, metric string, dayOfWeek int) ([]float64, models.BaselineKind, error) {
	seasonalValues, err := s.queryValues(ctx,
		`SELECT metric_value FROM metric_history
		 WHERE table_name = ? AND metric_name = ? AND day_of_week = ?
		 ORDER BY timestamp DESC`, table, metric, dayOfWeek)
	if err != nil {
		return nil, models.BaselineInitializing, err
	}
	if len(seasonalValues) >= 3 {
		return seasonalValues, models.BaselineSeasonal, nil
	}

	globalValues, err := s.queryValues(ctx,
		`SELECT metric_value FROM metric_history
		 WHERE table_name = ? AND metric_name = ?
		 ORDER BY timestamp DESC LIMIT 30`, table, metric)
	if err != nil {
		return nil, models.BaselineInitializing, err
	}
	if len(globalValues) > 0 {
		return globalValues, models.BaselineGlobal, nil
	}

	return nil, models.BaselineInitializing, nil
}

// RefreshThresholds recomputes and upserts the learned threshold for
// each named metric from the current metric_history, keyed to
// dayOfWeek's sample window. Thresholds are derived state: delete-
// then-insert on every refresh keeps them recomputable from samples
// alone, so a stale row never survives new history.
func (s *Store) RefreshThresholds(ctx context.Context, table string, metricNames []string, dayOfWeek int, now time.Time) error {
	for _, name := range metricNames {
		values, kind, err := s.baselineWindow(ctx, table, name, dayOfWeek)
		if err != nil {
			return fmt.Errorf("refresh threshold %s.%s: %w", table, name, err)
		}
		mean, std := meanStd(values)
		t := models.LearnedThreshold{
			TableName:    table,
			MetricName:   name,
			BaselineMean: mean,
			BaselineStd:  std,
			BaselineKind: kind,
			SampleCount:  len(values),
			LastUpdated:  now,
		}
		if err := s.UpsertThreshold(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) queryValues(ctx context.Context, query string, args ...any) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metric_history: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan metric_value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n
	if n < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / n)
	return mean, std
}
