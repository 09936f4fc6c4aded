// Package reporter renders a verdict document as the canonical JSON
// report file, or as a human-readable markdown or html summary.
package reporter

import (
	"fmt"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Render dispatches to the renderer for format ("json", "markdown", "html").
func Render(format string, v *models.Verdict) ([]byte, error) {
	switch format {
	case "json", "":
		return RenderJSON(v)
	case "markdown", "md":
		return RenderMarkdown(v), nil
	case "html":
		return RenderHTML(v), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
