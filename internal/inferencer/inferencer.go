// Package inferencer implements the Contract Inferencer: drafting
// a contract from a loaded table and its profile. The output is purely
// advisory — it has no side effects and is never applied automatically.
package inferencer

import (
	"github.com/pgEdge/data-gatekeeper/internal/loader"
	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// uniqueThreshold is the observed-uniqueness fraction above which a
// column is proposed as unique.
const uniqueThreshold = 0.999

// Infer drafts a contract for table from t and its Profiler output.
func Infer(table string, t *loader.Table, profile map[string]models.ColumnProfile) *models.Contract {
	c := &models.Contract{
		TableName: table,
		Info: models.Info{
			Version: 1,
			Domain:  "inferred",
		},
		Quality: models.Quality{
			AnomalyThresholds: models.DefaultAnomalyThresholds(),
			Freshness:         models.Freshness{Threshold: "24h"},
		},
		StrictMode: false,
	}

	for _, name := range t.Columns {
		p := profile[name]
		col := models.Column{
			Name:         name,
			PhysicalType: physicalType(p),
			Nullable:     p.NullFraction > 0,
		}
		if p.UniqueFraction >= uniqueThreshold {
			col.Unique = true
			if p.UniqueFraction == 1 && p.NullFraction == 0 {
				col.IsPrimaryKey = true
				col.Nullable = false
			}
		}
		c.Columns = append(c.Columns, col)
	}
	return c
}

// physicalType maps a profiled dtype to a contract physical_type.
func physicalType(p models.ColumnProfile) string {
	if p.DType == "" {
		return "string"
	}
	return p.DType
}
