package reporter

import (
	"bytes"
	"html/template"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

var htmlTemplate = template.Must(template.New("verdict").Parse(`<!DOCTYPE html>
<html>
<head><title>Gatekeeper verdict: {{.TableName}}</title></head>
<body>
<h1>Gatekeeper verdict: {{.TableName}}</h1>
<ul>
  <li><b>File:</b> {{.File}}</li>
  <li><b>Status:</b> {{.Status}}</li>
  <li><b>Timestamp:</b> {{.Timestamp}}</li>
  <li><b>Safe to use:</b> {{.HealthIndicator.SafeToUse}}</li>
</ul>
{{if .CriticalErrors}}
<h2>Critical errors</h2>
<ul>
{{range .CriticalErrors}}<li>[{{.Tag}}] {{.Message}}</li>
{{end}}</ul>
{{end}}
{{if .Warnings}}
<h2>Warnings</h2>
<ul>
{{range .Warnings}}<li>[{{.Tag}}] {{.Message}}</li>
{{end}}</ul>
{{end}}
</body>
</html>
`))

// RenderHTML produces a standalone HTML page summarizing v. Template
// execution errors on a well-formed Verdict are not expected; a
// failure falls back to an empty document rather than panicking.
func RenderHTML(v *models.Verdict) []byte {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, v); err != nil {
		return []byte{}
	}
	return buf.Bytes()
}
