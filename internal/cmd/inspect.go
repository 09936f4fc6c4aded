package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

var inspectEnv envFlags
var inspectLimit int
var inspectAll bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [table]",
	Short: "Print run history for a table, or a fleet-wide rollup with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	addEnvFlags(inspectCmd, &inspectEnv)
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 20, "Number of most recent runs to print")
	inspectCmd.Flags().BoolVar(&inspectAll, "all", false, "Print the fleet-wide registry rollup instead of one table's history")
}

func runInspect(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(inspectEnv)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()

	if inspectAll {
		return inspectFleet(ctx, e)
	}
	if len(args) != 1 {
		return fmt.Errorf("inspect requires a table name, or --all for a fleet rollup")
	}
	return inspectTable(ctx, e, args[0])
}

func inspectTable(ctx context.Context, e *env, table string) error {
	history, err := e.baselines.RunHistory(ctx, table, inspectLimit)
	if err != nil {
		return fmt.Errorf("read run history: %w", err)
	}
	if len(history) == 0 {
		fmt.Printf("no run history recorded for %q\n", table)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tSTATUS\tROWS\tQUALITY\tZ_MAX\tREASON")
	for _, r := range history {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.2f\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.Status, r.RowCount, r.QualityScore, r.ZScoreMax, r.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	thresholds, err := e.baselines.Thresholds(ctx, table)
	if err != nil {
		return fmt.Errorf("read learned thresholds: %w", err)
	}
	if len(thresholds) == 0 {
		return nil
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tBASELINE_MEAN\tBASELINE_STD\tKIND\tSAMPLES")
	for _, t := range thresholds {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\t%d\n",
			t.MetricName, t.BaselineMean, t.BaselineStd, t.BaselineKind, t.SampleCount)
	}
	return w.Flush()
}

// inspectFleet prints the read-only rollup over every registered
// table's last-known state: a fleet-wide view over the baseline
// store's registry rather than a new write surface.
func inspectFleet(ctx context.Context, e *env) error {
	entries, err := e.baselines.EvaluateAll(ctx)
	if err != nil {
		return fmt.Errorf("evaluate_all: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("registry is empty")
		return nil
	}

	summary := fleetSummaryOf(entries)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tCRITICALITY\tLAST_STATUS\tLAST_SCANNED\tSCAN_COUNT")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			entry.TableName, entry.Criticality, entry.LastStatus, entry.LastScanned.Format("2006-01-02 15:04:05"), entry.ScanCount)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d tables: %d pass, %d with warnings, %d fail\n",
		summary.TableCount, summary.PassCount, summary.WarnCount, summary.FailCount)
	return nil
}

// fleetSummaryOf rolls registry entries up into a FleetSummary.
func fleetSummaryOf(entries []models.DatasetRegistryEntry) models.FleetSummary {
	s := models.FleetSummary{TableCount: len(entries)}
	for _, entry := range entries {
		s.Tables = append(s.Tables, models.FleetTableSummary{
			TableName:   entry.TableName,
			LastStatus:  entry.LastStatus,
			Criticality: entry.Criticality,
		})
		switch entry.LastStatus {
		case models.StatusPass:
			s.PassCount++
		case models.StatusPassWithWarnings:
			s.WarnCount++
		case models.StatusFail:
			s.FailCount++
		default:
			s.UnknownCount++
		}
	}
	return s
}
