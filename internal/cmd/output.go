package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// formatExt maps output format names to file extensions.
var formatExt = map[string]string{
	"json":     ".json",
	"markdown": ".md",
	"html":     ".html",
}

// MakeDefaultOutputPath generates a default report path:
// ./reports/monitor_report_<timestamp>.<ext>.
func MakeDefaultOutputPath(format string) string {
	ts := time.Now().Format("20060102_150405")
	ext := formatExt[format]
	return filepath.Join("reports", "monitor_report_"+ts+ext)
}

// MakeOutputPath inserts a timestamp into a user-provided output path.
// If the user provides "report.html", the result is "report_20260127_131504.html".
// If they provide a directory, the file is placed there with an auto-generated name.
func MakeOutputPath(userPath, format string) string {
	ts := time.Now().Format("20060102_150405")
	ext := formatExt[format]

	info, err := os.Stat(userPath)
	if err == nil && info.IsDir() {
		return filepath.Join(userPath, "monitor_report_"+ts+ext)
	}

	base := userPath
	existingExt := filepath.Ext(userPath)
	if existingExt != "" {
		base = strings.TrimSuffix(userPath, existingExt)
	} else {
		existingExt = ext
	}
	return base + "_" + ts + existingExt
}

func writeOutput(output []byte, of outputFlags) (string, error) {
	var path string
	if of.Output != "" {
		path = MakeOutputPath(of.Output, of.Format)
	} else {
		path = MakeDefaultOutputPath(of.Format)
	}

	dir := filepath.Dir(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, output, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
