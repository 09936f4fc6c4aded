// Package probe implements the File Metadata Probe: freshness,
// size, duplicate-hash detection, and the CONTINUE/STOP decision that
// gates the rest of the pipeline.
package probe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// FileStatus is the outcome of probing one file.
type FileStatus string

const (
	StatusFresh     FileStatus = "fresh"
	StatusStale     FileStatus = "stale"
	StatusDuplicate FileStatus = "duplicate"
	StatusMissing   FileStatus = "missing"
)

// Decision is whether the orchestrator should proceed past this stage.
type Decision string

const (
	DecisionContinue Decision = "CONTINUE"
	DecisionStop     Decision = "STOP"
)

// Result is the Probe's output.
type Result struct {
	Path         string
	SizeBytes    int64
	ContentHash  string
	ModTime      time.Time
	AgeHours     float64
	Status       FileStatus
	Decision     Decision
	Reason       string
}

// KnownHashes reports whether a content hash has already been seen in
// a prior run (sourced from the Baseline Store's run_history.file_hash
// column).
type KnownHashes interface {
	HasFileHash(ctx context.Context, hash string) bool
}

// Run probes path and decides whether the run should continue.
// freshnessLimit is the per-contract staleness threshold (default 24h).
func Run(ctx context.Context, path string, freshnessLimit time.Duration, known KnownHashes) (Result, error) {
	if freshnessLimit <= 0 {
		freshnessLimit = 24 * time.Hour
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Result{
			Path:     path,
			Status:   StatusMissing,
			Decision: DecisionStop,
			Reason:   fmt.Sprintf("file %s does not exist", path),
		}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}

	hash, err := hashFile(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("hash %s: %w", path, err)
	}

	age := time.Since(info.ModTime())
	ageHours := age.Hours()

	result := Result{
		Path:        path,
		SizeBytes:   info.Size(),
		ContentHash: hash,
		ModTime:     info.ModTime(),
		AgeHours:    ageHours,
	}

	if known != nil && known.HasFileHash(ctx, hash) {
		result.Status = StatusDuplicate
		result.Decision = DecisionStop
		result.Reason = fmt.Sprintf("file content hash %s matches a previously processed file", hash)
		return result, nil
	}

	// Boundary: exactly at the limit counts as stale.
	if ageHours >= freshnessLimit.Hours() {
		result.Status = StatusStale
		result.Decision = DecisionStop
		result.Reason = fmt.Sprintf("File is %.1f hours old, exceeds maximum age of %.1f hours",
			ageHours, freshnessLimit.Hours())
		return result, nil
	}

	result.Status = StatusFresh
	result.Decision = DecisionContinue
	return result, nil
}

func hashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, ctxReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ctxReader aborts a long hash read as soon as its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ParseFreshness parses a contract's freshness.threshold string of the
// form "<int>h", defaulting to 24h for an empty value.
func ParseFreshness(threshold string) (time.Duration, error) {
	if threshold == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(threshold)
	if err != nil {
		return 0, fmt.Errorf("parse freshness threshold %q: %w", threshold, err)
	}
	return d, nil
}
