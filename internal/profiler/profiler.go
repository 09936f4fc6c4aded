// Package profiler implements the Statistical Profiler:
// per-column null/unique fractions, dtype inference, numeric summary
// statistics, and adaptive outlier detection.
package profiler

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Profile computes a models.ColumnProfile for every column of t.
func Profile(t *loader.Table) map[string]models.ColumnProfile {
	out := make(map[string]models.ColumnProfile, len(t.Columns))
	for _, name := range t.Columns {
		out[name] = profileColumn(name, t.Column(name))
	}
	return out
}

func profileColumn(name string, values []any) models.ColumnProfile {
	p := models.ColumnProfile{Name: name}

	total := len(values)
	if total == 0 {
		p.DType = "string"
		return p
	}

	var nulls int
	seen := make(map[string]bool, total)
	var numeric []float64
	var numericRows []int
	allNumeric := true

	for i, v := range values {
		if v == nil {
			nulls++
			continue
		}
		seen[fmt.Sprintf("%v", v)] = true
		if f, ok := toFloat(v); ok {
			numeric = append(numeric, f)
			numericRows = append(numericRows, i)
		} else {
			allNumeric = false
		}
	}

	p.NullFraction = float64(nulls) / float64(total)
	nonNull := total - nulls
	if nonNull > 0 {
		p.UniqueFraction = float64(len(seen)) / float64(nonNull)
	}

	if allNumeric && len(numeric) > 0 {
		p.DType = "float"
		fillNumericStats(&p, numeric, numericRows)
	} else {
		p.DType = "string"
	}
	return p
}

// fillNumericStats computes mean/median/std/skewness/kurtosis via gonum
// and selects an outlier method by |skewness|: Z-score for
// |skew| < 1.0, IQR otherwise. rows maps each value back to its
// table row index so OutlierIndices refers to rows, not positions in
// the nil-filtered numeric slice.
func fillNumericStats(p *models.ColumnProfile, values []float64, rows []int) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := stat.Mean(sorted, nil)
	std := stat.StdDev(sorted, nil)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	skew := stat.Skew(sorted, nil)
	kurt := stat.ExKurtosis(sorted, nil)

	p.Mean = &mean
	p.Median = &median
	// Std, skewness and kurtosis are undefined (NaN or ±Inf) for too few
	// values or zero spread; they are left nil then, so the profile stays
	// JSON-encodable for the Baseline Store's run history.
	if !math.IsNaN(std) && !math.IsInf(std, 0) {
		p.Std = &std
	}
	if !math.IsNaN(skew) && !math.IsInf(skew, 0) {
		p.Skewness = &skew
	}
	if !math.IsNaN(kurt) && !math.IsInf(kurt, 0) {
		p.Kurtosis = &kurt
	}

	minV, maxV := sorted[0], sorted[len(sorted)-1]
	p.Min = &minV
	p.Max = &maxV

	var method OutlierMethod
	if abs(skew) < 1.0 {
		method = ZScoreMethod{Mean: mean, Std: std}
	} else {
		method = IQRMethod{
			Q1: stat.Quantile(0.25, stat.Empirical, sorted, nil),
			Q3: stat.Quantile(0.75, stat.Empirical, sorted, nil),
		}
	}
	p.OutlierMethod = method.Name()
	for _, pos := range method.Outliers(values) {
		p.OutlierIndices = append(p.OutlierIndices, rows[pos])
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
