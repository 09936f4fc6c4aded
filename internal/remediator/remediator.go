// Package remediator implements the Schema Remediator: a
// safety-gated contract revision proposal, plus a separate apply step
// that archives-then-replaces via the Contract Store.
package remediator

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pgEdge/data-gatekeeper/internal/contract"
	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Propose builds a proposed contract revision from the current
// contract plus a schema diff, appending the diff's suggested columns
// for any unexpected data column not already present.
func Propose(current *models.Contract, diff models.SchemaDiff) *models.Contract {
	proposal := *current
	proposal.Columns = append([]models.Column(nil), current.Columns...)

	existing := make(map[string]bool, len(proposal.Columns))
	for _, col := range proposal.Columns {
		existing[col.Name] = true
	}
	for _, spec := range diff.SuggestedColumns {
		if existing[spec.Name] {
			continue
		}
		proposal.Columns = append(proposal.Columns, models.Column{
			Name:         spec.Name,
			PhysicalType: spec.PhysicalType,
			Nullable:     spec.Nullable,
		})
		existing[spec.Name] = true
	}
	proposal.Info.Version = current.Info.Version + 1
	return &proposal
}

// Gate checks the two safety gates a proposal must clear before it may
// be applied: G1 syntactic (well-formed, non-empty columns) and G2
// semantic non-shrink (columns(current) ⊆ columns(proposal)). Returns
// nil if both gates pass; a failure leaves the current contract
// unchanged.
func Gate(current, proposal *models.Contract) error {
	if proposal == nil || len(proposal.Columns) == 0 {
		return fmt.Errorf("G1 syntactic gate: proposal has no columns")
	}
	if err := proposal.Validate(); err != nil {
		return fmt.Errorf("G1 syntactic gate: %w", err)
	}

	proposedNames := make(map[string]bool, len(proposal.Columns))
	for _, col := range proposal.Columns {
		proposedNames[col.Name] = true
	}
	for _, col := range current.Columns {
		if !proposedNames[col.Name] {
			return fmt.Errorf("G2 non-shrink gate: proposal drops column %q", col.Name)
		}
	}
	return nil
}

// Apply archives the current contract then atomically replaces it with
// the proposal, via the Contract Store. Gate is re-checked as a safety
// net even if the caller already checked it.
func Apply(store *contract.Store, path string, current, proposal *models.Contract) error {
	if err := Gate(current, proposal); err != nil {
		return err
	}
	data, err := yaml.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("marshal proposed contract: %w", err)
	}
	return store.Replace(path, data)
}
