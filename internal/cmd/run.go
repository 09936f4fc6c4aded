package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgEdge/data-gatekeeper/internal/models"
	"github.com/pgEdge/data-gatekeeper/internal/obslog"
	"github.com/pgEdge/data-gatekeeper/internal/reporter"
)

var runEnv envFlags
var runOut outputFlags

var runCmd = &cobra.Command{
	Use:   "run <file_path> <table_name>",
	Short: "Execute one gatekeeper run against a single file",
	Args:  cobra.ExactArgs(2),
	RunE:  runRun,
}

func init() {
	addEnvFlags(runCmd, &runEnv)
	addOutputFlags(runCmd, &runOut)
}

func runRun(cmd *cobra.Command, args []string) error {
	file, table := args[0], args[1]

	e, err := buildEnv(runEnv)
	if err != nil {
		return err
	}
	defer e.close()

	obslog.Progress(runEnv.Verbose, "running %s against table %s", file, table)

	ctx := context.Background()
	v, err := e.orchestrator.Run(ctx, file, table)
	if err != nil {
		return fmt.Errorf("run %s: %w", table, err)
	}

	if err := dispatchActuation(e, file, v); err != nil {
		return err
	}

	output, err := reporter.Render(runOut.Format, v)
	if err != nil {
		return err
	}
	path, err := writeOutput(output, runOut)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	obslog.Progress(runEnv.Verbose, "report written to %s", path)

	if v.Status == models.StatusPass || v.Status == models.StatusPassWithWarnings {
		return nil
	}
	os.Exit(1)
	return nil
}
