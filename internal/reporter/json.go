package reporter

import (
	"encoding/json"
	"fmt"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// RenderJSON marshals v as the stable JSON verdict document described
// consumed downstream.
func RenderJSON(v *models.Verdict) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json verdict: %w", err)
	}
	return data, nil
}
