package orchestrator

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/data-gatekeeper/internal/baseline"
	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Job is one (file, table) pair submitted to RunAll.
type Job struct {
	File  string
	Table string
}

// RunAllOptions controls the bounded-concurrency run-all driver.
type RunAllOptions struct {
	// Concurrency bounds the number of in-flight runs. Zero selects a
	// default of 4.
	Concurrency int
	// SkipUnchanged enables the smart-scan short-circuit: a table whose
	// file mtime matches the registry's last recorded mtime within the
	// baseline store's epsilon is skipped entirely.
	SkipUnchanged bool
}

// RunAllResult is one job's outcome from RunAll.
type RunAllResult struct {
	Job     Job
	Verdict *models.Verdict
	Err     error
	Skipped bool
}

// RunAll drives one goroutine per table over a bounded worker pool.
// Each run on a different table proceeds independently;
// concurrency is capped by an errgroup.Group with SetLimit rather than
// a hand-rolled semaphore. A single job's Orchestrator.Run never
// returns an error for an ordinary pipeline failure (it reports a FAIL
// verdict instead), so the group's own error is never set and every
// goroutine always runs to completion; order of results matches the
// order of jobs, not completion order.
func (o *Orchestrator) RunAll(ctx context.Context, jobs []Job, opts RunAllOptions) []RunAllResult {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	results := make([]RunAllResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if opts.SkipUnchanged && o.unchanged(gctx, job) {
				results[i] = RunAllResult{Job: job, Skipped: true}
				return nil
			}

			v, err := o.Run(gctx, job.File, job.Table)
			results[i] = RunAllResult{Job: job, Verdict: v, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// unchanged reports whether job's file mtime matches the registry's
// last recorded mtime for its table within baseline.Unchanged's
// epsilon. Any error resolving either side conservatively means "run it".
func (o *Orchestrator) unchanged(ctx context.Context, job Job) bool {
	info, err := os.Stat(job.File)
	if err != nil {
		return false
	}

	if cached, ok := o.ScanCache.LastSeen(ctx, job.Table); ok {
		return cached.Equal(info.ModTime())
	}

	rctx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer cancel()
	entry, found, err := o.Baselines.RegistryEntry(rctx, job.Table)
	if err != nil {
		return false
	}
	return baseline.Unchanged(entry, found, info.ModTime())
}
