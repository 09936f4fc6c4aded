// Package obslog provides the gatekeeper's two logging surfaces: plain
// stderr progress output under a verbose flag, and structured zap
// logging for the pipeline components.
package obslog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Progress prints a human-facing progress line to stderr when verbose
// is set, and nothing otherwise.
func Progress(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// NewLogger builds the structured logger used by orchestrator, contract
// store, and alert router. Falls back to a no-op logger if zap's
// production config can't be built (never expected outside odd
// environments, but failing to log must never fail a run).
func NewLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
