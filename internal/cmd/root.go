// Package cmd implements the CLI commands for the gatekeeper.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Validate incoming tabular files against per-table contracts and learned baselines",
	Long:  "gatekeeper inspects tabular data files against a declarative per-table contract and learned statistical baselines, then promotes or quarantines them with a structured verdict.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runAllCmd)
	rootCmd.AddCommand(inspectCmd)
}

// Execute runs the root command. Called from main().
func Execute() error {
	return rootCmd.Execute()
}

// envFlags are the paths and endpoints shared by every subcommand: they
// describe where contracts, baselines, lineage, and routing live, and
// where the Actuator's three sibling directories are.
type envFlags struct {
	ContractsDir  string
	BaselineDB    string
	LandingDir    string
	StagingDir    string
	QuarantineDir string
	LineageFile   string
	RoutingFile   string
	RedisAddr     string
	AnthropicKey  string
	Verbose       bool
}

func addEnvFlags(cmd *cobra.Command, f *envFlags) {
	cmd.Flags().StringVar(&f.ContractsDir, "contracts-dir", "contracts", "Directory of per-table contract YAML files")
	cmd.Flags().StringVar(&f.BaselineDB, "baseline-db", "gatekeeper.db", "Path to the baseline store's sqlite file")
	cmd.Flags().StringVar(&f.LandingDir, "landing-dir", "landing", "Directory new files arrive in")
	cmd.Flags().StringVar(&f.StagingDir, "staging-dir", "staging", "Directory promoted files are moved to")
	cmd.Flags().StringVar(&f.QuarantineDir, "quarantine-dir", "quarantine", "Directory quarantined files are moved to")
	cmd.Flags().StringVar(&f.LineageFile, "lineage-file", "", "Optional lineage graph YAML")
	cmd.Flags().StringVar(&f.RoutingFile, "routing-file", "", "Optional alert routing document YAML")
	cmd.Flags().StringVar(&f.RedisAddr, "redis-addr", "", "Optional Redis address for the run-all smart-scan cache")
	cmd.Flags().StringVar(&f.AnthropicKey, "anthropic-api-key", "", "Optional Anthropic API key enabling the advisory schema-update note")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "Print progress")
}

// outputFlags controls where a verdict report is written.
type outputFlags struct {
	Format string
	Output string
}

func addOutputFlags(cmd *cobra.Command, f *outputFlags) {
	cmd.Flags().StringVarP(&f.Format, "format", "f", "json", "Report format (json, markdown, html)")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Output file path (default: ./reports/monitor_report_<timestamp>.<ext>)")
}
