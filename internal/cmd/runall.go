package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgEdge/data-gatekeeper/internal/contract"
	"github.com/pgEdge/data-gatekeeper/internal/models"
	"github.com/pgEdge/data-gatekeeper/internal/obslog"
	"github.com/pgEdge/data-gatekeeper/internal/orchestrator"
	"github.com/pgEdge/data-gatekeeper/internal/reporter"
)

var runAllEnv envFlags
var runAllOut outputFlags
var runAllSkipUnchanged bool
var runAllConcurrency int

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every discovered table against its landing-dir file",
	RunE:  runRunAll,
}

func init() {
	addEnvFlags(runAllCmd, &runAllEnv)
	addOutputFlags(runAllCmd, &runAllOut)
	runAllCmd.Flags().BoolVar(&runAllSkipUnchanged, "skip-unchanged", false, "Skip tables whose file mtime matches the registry's last_file_mtime")
	runAllCmd.Flags().IntVar(&runAllConcurrency, "concurrency", 4, "Maximum number of concurrent table runs")
}

func runRunAll(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(runAllEnv)
	if err != nil {
		return err
	}
	defer e.close()

	contracts, diags := e.contracts.List()
	for _, d := range diags {
		obslog.Progress(runAllEnv.Verbose, "contract parse diagnostic: %s: %v", d.Path, d.Err)
	}
	tables := contract.SortedTableNames(contracts)

	var jobs []orchestrator.Job
	for _, table := range tables {
		file, err := findInputFile(runAllEnv.LandingDir, table)
		if err != nil {
			obslog.Progress(runAllEnv.Verbose, "skipping %s: %v", table, err)
			continue
		}
		jobs = append(jobs, orchestrator.Job{File: file, Table: table})
	}
	obslog.Progress(runAllEnv.Verbose, "discovered %d tables, %d with an input file", len(tables), len(jobs))

	ctx := context.Background()
	results := e.orchestrator.RunAll(ctx, jobs, orchestrator.RunAllOptions{
		Concurrency:   runAllConcurrency,
		SkipUnchanged: runAllSkipUnchanged,
	})

	anyFail := false
	for _, res := range results {
		if res.Skipped {
			obslog.Progress(runAllEnv.Verbose, "%s: unchanged, skipped", res.Job.Table)
			continue
		}
		if res.Err != nil {
			obslog.Progress(runAllEnv.Verbose, "%s: run failed: %v", res.Job.Table, res.Err)
			anyFail = true
			continue
		}
		if err := dispatchActuation(e, res.Job.File, res.Verdict); err != nil {
			obslog.Progress(runAllEnv.Verbose, "%s: actuation failed: %v", res.Job.Table, err)
			anyFail = true
			continue
		}
		if res.Verdict.Status == models.StatusFail {
			anyFail = true
		}
		output, err := reporter.Render(runAllOut.Format, res.Verdict)
		if err != nil {
			obslog.Progress(runAllEnv.Verbose, "%s: render failed: %v", res.Job.Table, err)
			continue
		}
		path, err := writeOutput(output, runAllOut)
		if err != nil {
			obslog.Progress(runAllEnv.Verbose, "%s: write report failed: %v", res.Job.Table, err)
			continue
		}
		obslog.Progress(runAllEnv.Verbose, "%s: %s, report at %s", res.Job.Table, res.Verdict.Status, path)
	}

	if anyFail {
		os.Exit(1)
	}
	return nil
}

