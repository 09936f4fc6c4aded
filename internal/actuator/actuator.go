// Package actuator implements the Actuator: physically moving a
// file to the staging or quarantine namespace based on a verdict, and
// writing its sidecar audit document. File ownership transfers at
// commit: after promote or quarantine, the original path no longer
// exists.
package actuator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Actuator owns the landing, staging, and quarantine namespaces.
type Actuator struct {
	LandingDir    string
	StagingDir    string
	QuarantineDir string
}

// New builds an Actuator rooted at the three sibling directories,
// creating them if necessary.
func New(landing, staging, quarantine string) (*Actuator, error) {
	for _, dir := range []string{landing, staging, quarantine} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create namespace dir %s: %w", dir, err)
		}
	}
	return &Actuator{LandingDir: landing, StagingDir: staging, QuarantineDir: quarantine}, nil
}

// PromoteSidecar is the metadata document written alongside a promoted file.
type PromoteSidecar struct {
	MovedTo           string         `json:"moved_to"`
	Timestamp         time.Time      `json:"timestamp"`
	Status            string         `json:"status"`
	ValidationResults *models.Verdict `json:"validation_results"`
}

// ErrorSummary categorises a quarantined file's failure reasons into
// timeliness, schema, and profiling buckets.
type ErrorSummary struct {
	Timeliness []string `json:"timeliness,omitempty"`
	Schema     []string `json:"schema,omitempty"`
	Profiling  []string `json:"profiling,omitempty"`
}

// QuarantineSidecar is the error document written alongside a quarantined file.
type QuarantineSidecar struct {
	MovedTo      string       `json:"moved_to"`
	Timestamp    time.Time    `json:"timestamp"`
	Status       string       `json:"status"`
	ErrorSummary ErrorSummary `json:"error_summary"`
}

// Promote moves file to the staging namespace and writes an APPROVED
// sidecar carrying the full verdict.
func (a *Actuator) Promote(file string, report *models.Verdict) (string, error) {
	dest := filepath.Join(a.StagingDir, filepath.Base(file))
	if err := move(file, dest); err != nil {
		return "", fmt.Errorf("promote %s: %w", file, err)
	}

	sidecar := PromoteSidecar{
		MovedTo:           dest,
		Timestamp:         time.Now().UTC(),
		Status:            "APPROVED",
		ValidationResults: report,
	}
	if err := writeSidecar(dest+".sidecar.json", sidecar); err != nil {
		return dest, fmt.Errorf("write promote sidecar for %s: %w", dest, err)
	}
	return dest, nil
}

// Quarantine moves file to the quarantine namespace under a
// timestamp-uniquified name and writes a REJECTED error sidecar.
func (a *Actuator) Quarantine(file string, report *models.Verdict) (string, error) {
	ts := time.Now().UTC().Format("20060102_150405")
	ext := filepath.Ext(file)
	base := filepathBaseNoExt(file)
	dest := filepath.Join(a.QuarantineDir, fmt.Sprintf("%s_%s%s", base, ts, ext))

	if err := move(file, dest); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", file, err)
	}

	sidecar := QuarantineSidecar{
		MovedTo:      dest,
		Timestamp:    time.Now().UTC(),
		Status:       "REJECTED",
		ErrorSummary: summarize(report),
	}
	if err := writeSidecar(dest+".error.json", sidecar); err != nil {
		return dest, fmt.Errorf("write quarantine sidecar for %s: %w", dest, err)
	}
	return dest, nil
}

// EnumerateStaging lists every file currently in the staging namespace
// (sidecars excluded).
func (a *Actuator) EnumerateStaging() ([]string, error) {
	return enumerate(a.StagingDir)
}

// EnumerateQuarantine lists every file currently in the quarantine
// namespace (sidecars excluded).
func (a *Actuator) EnumerateQuarantine() ([]string, error) {
	return enumerate(a.QuarantineDir)
}

func enumerate(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".json" && (len(name) > 12) {
			// skip *.sidecar.json / *.error.json audit documents
			if hasSuffixAny(name, ".sidecar.json", ".error.json") {
				continue
			}
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}

// summarize buckets each violation's human message by category, per
// the timeliness/schema/profiling grouping.
func summarize(report *models.Verdict) ErrorSummary {
	var s ErrorSummary
	if report == nil {
		return s
	}
	for _, v := range report.CriticalErrors {
		bucket(&s, v)
	}
	for _, v := range report.Warnings {
		bucket(&s, v)
	}
	return s
}

func bucket(s *ErrorSummary, v models.Violation) {
	switch v.Tag {
	case models.TagTimeliness:
		s.Timeliness = append(s.Timeliness, v.Message)
	case models.TagSchemaCritical, models.TagSchemaWarning, models.TagConsistencyBreak:
		s.Schema = append(s.Schema, v.Message)
	default:
		s.Profiling = append(s.Profiling, v.Message)
	}
}

// move renames src to dest, falling back to copy-then-remove when the
// namespaces live on different filesystems (os.Rename returns
// syscall.EXDEV in that case).
func move(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func writeSidecar(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func filepathBaseNoExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
