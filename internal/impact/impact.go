// Package impact implements the Impact Resolver: resolving a
// table's downstream consumers and overall criticality from a
// read-only lineage graph.
package impact

import "github.com/pgEdge/data-gatekeeper/internal/models"

// criticalityWeight scales a table_priority score by how much a
// consumer's criticality should matter when scoring table_priority.
func criticalityWeight(c models.Criticality) float64 {
	switch c {
	case models.CriticalityMedium:
		return 2
	case models.CriticalityHigh:
		return 3
	case models.CriticalityCritical:
		return 4
	default:
		return 1
	}
}

const tablePriorityWindow = 20

// ComputeTablePriority scores a table's fleet priority from its recent
// run history (newest first) weighted by its overall downstream
// criticality: score = recent_failure_rate * criticality_weight.
// History longer than the 20-run window is truncated here defensively.
func ComputeTablePriority(history []models.RunRecord, overall models.Criticality) models.TablePriority {
	if len(history) > tablePriorityWindow {
		history = history[:tablePriorityWindow]
	}
	var fails int
	for _, r := range history {
		if r.Status == models.StatusFail {
			fails++
		}
	}
	var rate float64
	if len(history) > 0 {
		rate = float64(fails) / float64(len(history))
	}
	score := rate * criticalityWeight(overall)

	tier := models.TierRoutine
	switch {
	case score >= 2.5:
		tier = models.TierUrgent
	case score >= 1.0:
		tier = models.TierElevated
	}

	return models.TablePriority{
		Score:       score,
		Tier:        tier,
		Criticality: overall,
		FailureRate: rate,
	}
}

// Resolution is the Impact Resolver's output for one table.
type Resolution struct {
	Table              string
	Consumers          []models.Consumer
	OverallCriticality models.Criticality
}

// Resolve computes downstream(table) and its overall_criticality, the
// max over its consumers. A table with no lineage
// entry defaults to LOW.
func Resolve(g *models.LineageGraph, table string) Resolution {
	consumers := g.Downstream(table)
	r := Resolution{Table: table, Consumers: consumers, OverallCriticality: models.CriticalityLow}
	for _, c := range consumers {
		if c.Criticality > r.OverallCriticality {
			r.OverallCriticality = c.Criticality
		}
	}
	return r
}
