// Package advice provides a pluggable propose_schema_update(current,
// diff) -> Proposal interface. The LLM advice content is
// non-deterministic and external to the core: it
// is carried as an opaque string, never consulted by the Orchestrator's
// state machine, and defaults to a no-op.
package advice

import (
	"context"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Advisor produces an opaque, human-facing note about a schema diff.
// Implementations must never be load-bearing for a verdict's status.
type Advisor interface {
	Advise(ctx context.Context, c *models.Contract, diff models.SchemaDiff) (string, error)
}

// NoopAdvisor is the default Advisor: it never produces advice.
type NoopAdvisor struct{}

func (NoopAdvisor) Advise(context.Context, *models.Contract, models.SchemaDiff) (string, error) {
	return "", nil
}
