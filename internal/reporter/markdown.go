package reporter

import (
	"fmt"
	"strings"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// RenderMarkdown produces a human-readable summary of v.
func RenderMarkdown(v *models.Verdict) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Gatekeeper verdict: %s\n\n", v.TableName)
	fmt.Fprintf(&sb, "- **File**: `%s`\n", v.File)
	fmt.Fprintf(&sb, "- **Status**: %s\n", v.Status)
	fmt.Fprintf(&sb, "- **Timestamp**: %s\n", v.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- **Execution time**: %.3fs\n", v.ExecutionTime)
	fmt.Fprintf(&sb, "- **Safe to use**: %v\n\n", v.HealthIndicator.SafeToUse)

	if len(v.CriticalErrors) > 0 {
		sb.WriteString("## Critical errors\n\n")
		for _, e := range v.CriticalErrors {
			fmt.Fprintf(&sb, "- **[%s]** %s\n", e.Tag, e.Message)
		}
		sb.WriteString("\n")
	}

	if len(v.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&sb, "- **[%s]** %s\n", w.Tag, w.Message)
		}
		sb.WriteString("\n")
	}

	if len(v.SchemaEvolution.SuggestedUpdates) > 0 {
		sb.WriteString("## Suggested schema updates\n\n")
		for _, c := range v.SchemaEvolution.SuggestedUpdates {
			fmt.Fprintf(&sb, "- `%s` (%s)\n", c.Name, c.PhysicalType)
		}
		sb.WriteString("\n")
	}

	if v.RemediationCandidate != nil {
		fmt.Fprintf(&sb, "## Remediation candidate\n\n- proposed contract version: %d\n\n", v.RemediationCandidate.Info.Version)
	}

	fmt.Fprintf(&sb, "## Table priority\n\n- tier: %s\n- score: %.2f\n", v.TablePriority.Tier, v.TablePriority.Score)

	return []byte(sb.String())
}
