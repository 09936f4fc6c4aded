// Package anomaly implements the Anomaly Engine: per-metric
// Z-score evaluation against the Baseline Store's learned thresholds,
// and the seasonal pattern detector.
package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Baseline is the subset of the Baseline Store the Anomaly Engine reads.
type Baseline interface {
	SeasonalBaseline(ctx context.Context, table, metric string, weekday int) (mean, std float64, kind models.BaselineKind, err error)
}

// Evaluate scores each observed metric against its learned baseline,
// returning one models.Anomaly per metric. thresholds
// comes from the contract's effective anomaly_thresholds.
func Evaluate(ctx context.Context, b Baseline, table string, metrics map[string]float64, at time.Time, thresholds models.AnomalyThresholds) ([]models.Anomaly, error) {
	anomalies := make([]models.Anomaly, 0, len(metrics))
	for name, value := range metrics {
		mean, std, kind, err := b.SeasonalBaseline(ctx, table, name, int(at.Weekday()))
		if err != nil {
			return nil, fmt.Errorf("seasonal baseline for %s.%s: %w", table, name, err)
		}

		a := models.Anomaly{Metric: name, Value: value, BaselineKind: kind}
		if kind == models.BaselineInitializing {
			anomalies = append(anomalies, a)
			continue
		}

		var z float64
		switch {
		case std == 0 && value > mean:
			z = 10
		case std == 0 && value < mean:
			z = -10
		case std == 0:
			z = 0
		default:
			z = (value - mean) / std
		}
		a.Z = z
		absZ := z
		if absZ < 0 {
			absZ = -absZ
		}
		switch {
		case absZ > thresholds.ZCrit:
			a.Severity = "critical"
			a.Note = fmt.Sprintf("%s is %.2f standard deviations from the %s baseline", name, z, kind)
		case absZ >= thresholds.ZWarn:
			a.Severity = "warning"
			a.Note = fmt.Sprintf("%s is %.2f standard deviations from the %s baseline", name, z, kind)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, nil
}

// MaxZ returns the largest absolute Z across anomalies, for the
// verdict document's z_score_max summary field.
func MaxZ(anomalies []models.Anomaly) float64 {
	var max float64
	for _, a := range anomalies {
		z := a.Z
		if z < 0 {
			z = -z
		}
		if z > max {
			max = z
		}
	}
	return max
}

// CriticalCount returns how many anomalies are CRITICAL severity.
func CriticalCount(anomalies []models.Anomaly) int {
	n := 0
	for _, a := range anomalies {
		if a.Severity == "critical" {
			n++
		}
	}
	return n
}

// seasonalKey identifies one (table, metric, weekday, month) bucket
// for the seasonal pattern detector.
type seasonalKey struct {
	Table   string
	Metric  string
	Weekday int
	Month   int
}

// DetectSeasonal groups anomalies observed at `at` into a
// SeasonalAnalysis, flagging metrics that are anomalous specifically
// for this weekday/month combination (as opposed to a persistent drift).
func DetectSeasonal(table string, anomalies []models.Anomaly, at time.Time) models.SeasonalAnalysis {
	analysis := models.SeasonalAnalysis{
		DayOfWeek: int(at.Weekday()),
		Month:     int(at.Month()),
		Anomalies: anomalies,
	}
	for _, a := range anomalies {
		if a.BaselineKind == models.BaselineSeasonal && a.Severity != "" {
			key := seasonalKey{Table: table, Metric: a.Metric, Weekday: analysis.DayOfWeek, Month: analysis.Month}
			analysis.SeasonalFlags = append(analysis.SeasonalFlags,
				fmt.Sprintf("%s/%s weekday=%d month=%d", key.Table, key.Metric, key.Weekday, key.Month))
		}
	}
	return analysis
}
